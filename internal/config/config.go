// backend-go/internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Drive     DriveConfig
	Scheduler SchedulerConfig
	Signals   SignalsConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	DataDir   string
	ReportDir string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	ReportTTLSeconds int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
	DownloadDir     string
	PollMinutes     int
}

type SchedulerConfig struct {
	Enabled  bool
	CronSpec string
}

// SignalsConfig selects where the external signal bundle comes from.
// An empty BundlePath uses the seasonal simulation provider.
type SignalsConfig struct {
	Region            string
	SimulateShortages bool
	BundlePath        string
}

// PipelineConfig bundles the per-stage tuning knobs for one analysis run.
type PipelineConfig struct {
	Profiling    ProfilingConfig
	Forecasting  ForecastingConfig
	Optimization OptimizationConfig
	WorkerCount  int
}

// ProfilingConfig controls refill behavior classification.
type ProfilingConfig struct {
	HighlyRegularStdDays float64 // std-dev threshold for highly_regular
	RegularStdDays       float64 // std-dev threshold for regular
	MinFillsForPredict   int     // fills required before predicting
	DueSoonDays          int     // window for the due-soon flag
}

// ForecastingConfig controls demand forecasting.
type ForecastingConfig struct {
	HorizonDays     int     // days ahead to forecast
	ConfidenceLevel float64 // interval confidence (0-1)
	SpikeThreshold  float64 // predicted/base ratio that flags a spike
}

// OptimizationConfig controls order recommendation math.
type OptimizationConfig struct {
	ServiceLevel          float64
	SafetyStockDays       float64
	CarryingCostRate      float64
	OrderFixedCost        float64
	CriticalThresholdDays float64
	HighThresholdDays     float64
	UseEOQ                bool
	RoundToCase           bool
	MinOrderQuantity      int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "apothecary")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("APP_DATA_DIR", "./data")
		viper.SetDefault("APP_REPORT_DIR", "./data/reports")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_REPORT_TTL_SECONDS", 300)
		viper.SetDefault("STORAGE_ENABLED", false)
		viper.SetDefault("STORAGE_ENDPOINT", "")
		viper.SetDefault("STORAGE_ACCESS_KEY", "")
		viper.SetDefault("STORAGE_SECRET_KEY", "")
		viper.SetDefault("STORAGE_BUCKET", "apothecary-reports")
		viper.SetDefault("STORAGE_REGION", "us-east-1")
		viper.SetDefault("STORAGE_USE_SSL", true)
		viper.SetDefault("DRIVE_FOLDER_ID", "")
		viper.SetDefault("DRIVE_DOWNLOAD_DIR", "./data/incoming")
		viper.SetDefault("DRIVE_POLL_MINUTES", 15)
		viper.SetDefault("SCHEDULER_ENABLED", false)
		viper.SetDefault("SCHEDULER_CRON", "0 6 * * *")
		viper.SetDefault("SIGNALS_REGION", "greece")
		viper.SetDefault("SIGNALS_SIMULATE_SHORTAGES", true)
		viper.SetDefault("SIGNALS_BUNDLE_PATH", "")
		viper.SetDefault("PIPELINE_WORKERS", 4)
		viper.SetDefault("PROFILING_HIGHLY_REGULAR_STD_DAYS", 3.0)
		viper.SetDefault("PROFILING_REGULAR_STD_DAYS", 7.0)
		viper.SetDefault("PROFILING_MIN_FILLS_FOR_PREDICT", 3)
		viper.SetDefault("PROFILING_DUE_SOON_DAYS", 7)
		viper.SetDefault("FORECAST_HORIZON_DAYS", 30)
		viper.SetDefault("FORECAST_CONFIDENCE_LEVEL", 0.95)
		viper.SetDefault("FORECAST_SPIKE_THRESHOLD", 1.5)
		viper.SetDefault("OPT_SERVICE_LEVEL", 0.95)
		viper.SetDefault("OPT_SAFETY_STOCK_DAYS", 7.0)
		viper.SetDefault("OPT_CARRYING_COST_RATE", 0.20)
		viper.SetDefault("OPT_ORDER_FIXED_COST", 50.0)
		viper.SetDefault("OPT_CRITICAL_THRESHOLD_DAYS", 3.0)
		viper.SetDefault("OPT_HIGH_THRESHOLD_DAYS", 7.0)
		viper.SetDefault("OPT_USE_EOQ", true)
		viper.SetDefault("OPT_ROUND_TO_CASE", true)
		viper.SetDefault("OPT_MIN_ORDER_QUANTITY", 1)

		// Read from environment variables
		viper.AutomaticEnv()

		// Ensure data and report directories exist
		ensureDir(viper.GetString("APP_DATA_DIR"))
		ensureDir(viper.GetString("APP_REPORT_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			App: AppConfig{
				DataDir:   viper.GetString("APP_DATA_DIR"),
				ReportDir: viper.GetString("APP_REPORT_DIR"),
			},
			Cache: CacheConfig{
				Enabled:          viper.GetBool("CACHE_ENABLED"),
				RedisURL:         viper.GetString("REDIS_URL"),
				RedisHost:        viper.GetString("REDIS_HOST"),
				RedisPort:        viper.GetString("REDIS_PORT"),
				RedisPassword:    viper.GetString("REDIS_PASSWORD"),
				RedisDB:          viper.GetInt("REDIS_DB"),
				ReportTTLSeconds: viper.GetInt("CACHE_REPORT_TTL_SECONDS"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("STORAGE_ENABLED"),
				Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
				AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
				SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
				Bucket:    viper.GetString("STORAGE_BUCKET"),
				Region:    viper.GetString("STORAGE_REGION"),
				UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
			},
			Drive: DriveConfig{
				CredentialsJSON: os.Getenv("GOOGLE_DRIVE_CREDENTIALS_JSON"),
				FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
				DownloadDir:     viper.GetString("DRIVE_DOWNLOAD_DIR"),
				PollMinutes:     viper.GetInt("DRIVE_POLL_MINUTES"),
			},
			Scheduler: SchedulerConfig{
				Enabled:  viper.GetBool("SCHEDULER_ENABLED"),
				CronSpec: viper.GetString("SCHEDULER_CRON"),
			},
			Signals: SignalsConfig{
				Region:            viper.GetString("SIGNALS_REGION"),
				SimulateShortages: viper.GetBool("SIGNALS_SIMULATE_SHORTAGES"),
				BundlePath:        viper.GetString("SIGNALS_BUNDLE_PATH"),
			},
			Pipeline: PipelineConfig{
				Profiling: ProfilingConfig{
					HighlyRegularStdDays: viper.GetFloat64("PROFILING_HIGHLY_REGULAR_STD_DAYS"),
					RegularStdDays:       viper.GetFloat64("PROFILING_REGULAR_STD_DAYS"),
					MinFillsForPredict:   viper.GetInt("PROFILING_MIN_FILLS_FOR_PREDICT"),
					DueSoonDays:          viper.GetInt("PROFILING_DUE_SOON_DAYS"),
				},
				Forecasting: ForecastingConfig{
					HorizonDays:     viper.GetInt("FORECAST_HORIZON_DAYS"),
					ConfidenceLevel: viper.GetFloat64("FORECAST_CONFIDENCE_LEVEL"),
					SpikeThreshold:  viper.GetFloat64("FORECAST_SPIKE_THRESHOLD"),
				},
				Optimization: OptimizationConfig{
					ServiceLevel:          viper.GetFloat64("OPT_SERVICE_LEVEL"),
					SafetyStockDays:       viper.GetFloat64("OPT_SAFETY_STOCK_DAYS"),
					CarryingCostRate:      viper.GetFloat64("OPT_CARRYING_COST_RATE"),
					OrderFixedCost:        viper.GetFloat64("OPT_ORDER_FIXED_COST"),
					CriticalThresholdDays: viper.GetFloat64("OPT_CRITICAL_THRESHOLD_DAYS"),
					HighThresholdDays:     viper.GetFloat64("OPT_HIGH_THRESHOLD_DAYS"),
					UseEOQ:                viper.GetBool("OPT_USE_EOQ"),
					RoundToCase:           viper.GetBool("OPT_ROUND_TO_CASE"),
					MinOrderQuantity:      viper.GetInt("OPT_MIN_ORDER_QUANTITY"),
				},
				WorkerCount: viper.GetInt("PIPELINE_WORKERS"),
			},
		}
	})

	return instance
}

// DefaultPipelineConfig returns the stage defaults without touching the
// process environment. Used by the CLI and by tests.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Profiling: ProfilingConfig{
			HighlyRegularStdDays: 3.0,
			RegularStdDays:       7.0,
			MinFillsForPredict:   3,
			DueSoonDays:          7,
		},
		Forecasting: ForecastingConfig{
			HorizonDays:     30,
			ConfidenceLevel: 0.95,
			SpikeThreshold:  1.5,
		},
		Optimization: OptimizationConfig{
			ServiceLevel:          0.95,
			SafetyStockDays:       7.0,
			CarryingCostRate:      0.20,
			OrderFixedCost:        50.0,
			CriticalThresholdDays: 3.0,
			HighThresholdDays:     7.0,
			UseEOQ:                true,
			RoundToCase:           true,
			MinOrderQuantity:      1,
		},
		WorkerCount: 4,
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}

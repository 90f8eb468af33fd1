package domain

import "errors"

// Precondition errors. Stages wrap these with the offending column, field
// or record so callers can identify what failed while still matching with
// errors.Is.
var (
	ErrMissingColumn    = errors.New("missing required column")
	ErrMissingField     = errors.New("missing required field")
	ErrNegativeQuantity = errors.New("negative quantity")
	ErrNegativeCost     = errors.New("negative unit cost")
	ErrInvalidDate      = errors.New("invalid date")
	ErrNoPrescriptions  = errors.New("no prescription records")
	ErrNoProfiles       = errors.New("no patient profiles")
	ErrNoForecast       = errors.New("no forecast data")
	ErrNoInventory      = errors.New("no inventory data")
	ErrRunNotFound      = errors.New("analysis run not found")
	ErrReportNotFound   = errors.New("report not found")
)

package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidPosition   = errors.New("invalid position data")
	ErrMissingPriceData  = errors.New("missing price data")
	ErrWashSaleViolation = errors.New("wash sale violation")
	ErrHarvestInProgress = errors.New("harvest already in progress")
	ErrNoAlternative     = errors.New("no compliant alternative available")
	ErrBrokerRejected    = errors.New("order rejected by broker")
	ErrBrokerTimeout     = errors.New("broker request timed out")
	ErrPartialExecution  = errors.New("partial execution: sell filled but buy failed")
	ErrLockHeld          = errors.New("lock already held")
)

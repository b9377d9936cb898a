package engine

import "errors"

var (
	ErrUnknownBanner    = errors.New("unknown banner")
	ErrInvalidCount     = errors.New("invalid pull count")
	ErrInvalidAmount    = errors.New("amount must not be negative")
	ErrNotEnoughPulls   = errors.New("not enough pulls")
	ErrNoBannerAt       = errors.New("no banner bound at location")
	ErrLocationTaken    = errors.New("location is already bound to a banner")
	ErrLocationNotBound = errors.New("location is not bound to the banner")
	ErrNoBannerFile     = errors.New("no banner file configured")
	ErrSimulationTooBig = errors.New("simulation exceeds the pull limit")
)

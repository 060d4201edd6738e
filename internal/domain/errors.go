package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidMarketURL = errors.New("invalid market url")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrContextDone      = errors.New("context cancelled")
)

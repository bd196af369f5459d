package model

import "errors"

// Sentinel errors for the model package.
// Use errors.Is to check: errors.Is(err, model.ErrNotLoaded)
var (
	ErrNotLoaded         = errors.New("model: data not loaded")
	ErrAlreadyLoaded     = errors.New("model: data already loaded, clear it before loading new data")
	ErrSourceUnavailable = errors.New("model: unable to open data source")
	ErrInvalidOperation  = errors.New("model: invalid operation")
	ErrInvalidRecord     = errors.New("model: invalid data record")
	ErrBufferLength      = errors.New("model: buffer length mismatch")
	ErrIndexRange        = errors.New("model: index out of range")
)

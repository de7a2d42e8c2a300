package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrMalformedTerm   = errors.New("malformed term")
	ErrBudgetExhausted = errors.New("resource budget exhausted")
	ErrUndeclared      = errors.New("undeclared relation")
	ErrNotFound        = errors.New("not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

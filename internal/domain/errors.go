package domain

import "errors"

// Error classes. Wrap with fmt.Errorf("...: %w", Err...) and classify with
// errors.Is. Only ErrConfig is fatal.
var (
	ErrConfig   = errors.New("configuration error")
	ErrFetch    = errors.New("fetch error")
	ErrParse    = errors.New("parse error")
	ErrDelivery = errors.New("delivery error")
	ErrStorage  = errors.New("storage error")
)

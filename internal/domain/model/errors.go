package model

import "errors"

var (
	// ErrSourceFetch marks a failed download of a remote or snapshot source.
	ErrSourceFetch = errors.New("source fetch failed")
	// ErrSchema marks a source whose columns or cells do not have the expected shape.
	ErrSchema = errors.New("unexpected source schema")
	// ErrForecastFit marks a series that cannot be fitted.
	ErrForecastFit = errors.New("forecast fit failed")
)

package importer

import "errors"

var (
	ErrMissingID        = errors.New("importer: record has no id")
	ErrUnsupportedShape = errors.New("importer: unsupported shape")
	ErrMissingCounty    = errors.New("importer: county is required")
)

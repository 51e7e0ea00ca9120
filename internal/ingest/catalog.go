package ingest

import "maps"

// UnknownErrorDescription is used for codes missing from the catalog.
const UnknownErrorDescription = "Unknown error"

// ErrorCatalog maps device error codes to human readable descriptions.
type ErrorCatalog map[int64]string

// DefaultErrorCatalog returns the codes documented for the current firmware.
func DefaultErrorCatalog() ErrorCatalog {
	return ErrorCatalog{
		127: "General system error",
		175: "Communication failure",
	}
}

// Describe resolves code, falling back to UnknownErrorDescription.
func (c ErrorCatalog) Describe(code int64) string {
	if desc, ok := c[code]; ok {
		return desc
	}
	return UnknownErrorDescription
}

// With returns a copy of c extended (or overridden) by extra.
func (c ErrorCatalog) With(extra map[int64]string) ErrorCatalog {
	out := make(ErrorCatalog, len(c)+len(extra))
	maps.Copy(out, c)
	maps.Copy(out, extra)
	return out
}

package api

import "errors"

var errTrailingData = errors.New("request body must contain a single JSON object")

// FieldErrors maps request field names to validation messages.
type FieldErrors map[string]string

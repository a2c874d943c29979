// Package api holds the JSON envelope every HTTP endpoint answers with.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Response is the envelope {success, message, data, errors, timestamp}.
type Response struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Errors    any       `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, r *http.Request, message string, data any) {
	Write(w, r, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope with status.
func Error(w http.ResponseWriter, r *http.Request, status int, message string, errs any) {
	Write(w, r, status, Response{Success: false, Message: message, Errors: errs})
}

// Write encodes resp as JSON with status. The timestamp is set here.
func Write(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	resp.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("api: encode response")
	}
}

// Decode reads a JSON body into v, rejecting unknown fields and trailing data.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

// Package httpjson writes the API's JSON envelope and maps domain errors to HTTP statuses.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"cyber-monitor/backend/internal/alert"
	"cyber-monitor/backend/internal/analyzer"
	"cyber-monitor/backend/internal/event/domain"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// DefaultMaxBodyBytes bounds JSON request bodies.
const DefaultMaxBodyBytes = 1 << 20

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data any) {
	Write(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data any) {
	Write(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// Message writes a 200 success envelope carrying a confirmation message and optional data.
func Message(w http.ResponseWriter, msg string, data any) {
	Write(w, http.StatusOK, Envelope{Success: true, Message: msg, Data: data})
}

// Write encodes env with the given status.
func Write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// Fail writes an error envelope with an explicit status and kind.
func Fail(w http.ResponseWriter, status int, kind, msg string) {
	Write(w, status, Envelope{Error: msg, Kind: kind})
}

// Error maps err to a status and envelope. Unexpected errors are logged with the request logger
// and reported without internal detail.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, env := Describe(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("request failed")
	}
	Write(w, status, env)
}

// Describe returns the status and envelope for err.
func Describe(err error) (int, Envelope) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		store      *domain.StoreError
		transport  *alert.TransportError
		engine     *analyzer.AnalyzerError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, Envelope{Error: validation.Message, Kind: "validation", Field: validation.Field}
	case errors.As(err, &notFound):
		return http.StatusNotFound, Envelope{Error: notFound.Error(), Kind: "not_found"}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, Envelope{
			Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			Kind:  "too_large",
		}
	case errors.As(err, &transport):
		return http.StatusBadGateway, Envelope{Error: transport.Error(), Kind: "transport"}
	case errors.As(err, &engine):
		status := http.StatusBadGateway
		if engine.Kind == analyzer.TimedOut {
			status = http.StatusGatewayTimeout
		}
		details := map[string]any{"engine": engine.Engine}
		if engine.Kind == analyzer.EngineFailure {
			details["exitCode"] = engine.ExitCode
			if engine.Stderr != "" {
				details["stderr"] = engine.Stderr
			}
		}
		return status, Envelope{Error: engine.Error(), Kind: string(engine.Kind), Details: details}
	case errors.As(err, &store):
		return http.StatusInternalServerError, Envelope{Error: "storage failure", Kind: "store"}
	}
	return http.StatusInternalServerError, Envelope{Error: "internal error", Kind: "internal"}
}

// Decode reads a JSON body of at most maxBytes into dst. An empty body leaves dst untouched.
func Decode(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return domain.Invalid("body", "malformed JSON: %v", err)
	}
	return nil
}

// QueryInt parses an optional integer query parameter. Missing means def.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid(name, "must be an integer")
	}
	return n, nil
}

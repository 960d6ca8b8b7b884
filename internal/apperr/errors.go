// Package apperr maps domain failures onto HTTP responses.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is an error that knows its HTTP status
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func BadRequest(message string, err error) *Error {
	return New(http.StatusBadRequest, message, err)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

// Mapping translates a sentinel into an HTTP status and public message.
type Mapping struct {
	Target  error
	Code    int
	Message string
}

// Mapper resolves errors against a list of sentinel mappings. Matching uses
// errors.Is, so wrapped sentinels resolve too.
type Mapper struct {
	mappings []Mapping
	fallback func(error) *Error
}

func NewMapper(mappings ...Mapping) *Mapper {
	return &Mapper{mappings: mappings}
}

// WithFallback installs a resolver consulted after the sentinel list and
// before the generic 500.
func (m *Mapper) WithFallback(fn func(error) *Error) *Mapper {
	m.fallback = fn
	return m
}

// Resolve converts err to an *Error.
func (m *Mapper) Resolve(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, mp := range m.mappings {
		if errors.Is(err, mp.Target) {
			msg := mp.Message
			if msg == "" {
				msg = mp.Target.Error()
			}
			return New(mp.Code, msg, err)
		}
	}
	if m.fallback != nil {
		if e := m.fallback(err); e != nil {
			return e
		}
	}
	return New(http.StatusInternalServerError, "internal server error", err)
}

// Write resolves err and writes it as a JSON body.
func (m *Mapper) Write(w http.ResponseWriter, err error) *Error {
	appErr := m.Resolve(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": appErr.Message})
	return appErr
}

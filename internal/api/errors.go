package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API failure. Callers branch on Kind, never on message
// text.
type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindNetwork
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	}
	return "server"
}

const (
	networkMessage      = "Network error occurred. Please check your connection."
	noTokenMessage      = "No authentication token found. Please login again."
	badTokenMessage     = "Invalid token format. Please login again."
	fallbackUserMessage = "Something went wrong. Please try again."
)

// Error is returned for every failed API call.
type Error struct {
	Status  int
	Kind    Kind
	Message string
	Body    map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized, http.StatusUnprocessableEntity:
		return KindAuth
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	}
	return KindServer
}

// errorFromResponse builds the error for a non-2xx response. The message is
// the body's "error" field, then its "message" field, then a generic line
// naming the status.
func errorFromResponse(status int, raw []byte) *Error {
	e := &Error{Status: status, Kind: kindForStatus(status)}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		e.Message = fmt.Sprintf("Server returned invalid response (status %d)", status)
		return e
	}
	e.Body = body
	switch {
	case stringField(body, "error") != "":
		e.Message = stringField(body, "error")
	case stringField(body, "message") != "":
		e.Message = stringField(body, "message")
	default:
		e.Message = fmt.Sprintf("Request failed with status %d", status)
	}
	return e
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

func noToken() *Error {
	return &Error{Kind: KindAuth, Message: noTokenMessage}
}

// KindOf reports the Kind of err, or KindServer when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// IsAuth reports whether err means the session is no longer usable.
func IsAuth(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindAuth
}

func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// Message returns text suitable for showing to the user.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallbackUserMessage
}

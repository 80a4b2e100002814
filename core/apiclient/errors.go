package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NetworkError is a transport failure: the request never produced an HTTP response.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Message comes from the JSON "message"
// field of the body, or is synthesized from the status code.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

// MalformedResponseError is a 2xx response whose body is not valid JSON.
type MalformedResponseError struct {
	Status int
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return "La réponse du serveur n'est pas un JSON valide."
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func genericHTTPMessage(status int) string {
	return fmt.Sprintf("Erreur HTTP! Statut: %d", status)
}

func newHTTPError(status int, body []byte) *HTTPError {
	var payload struct {
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = strings.TrimSpace(payload.Message)
	}
	if msg == "" {
		msg = genericHTTPMessage(status)
	}
	return &HTTPError{Status: status, Message: msg}
}

// StatusOf reports the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Status, true
	}
	return 0, false
}

// IsTransport reports whether err is a network or decoding failure.
func IsTransport(err error) bool {
	var nerr *NetworkError
	var merr *MalformedResponseError
	return errors.As(err, &nerr) || errors.As(err, &merr)
}

// Message returns the user-facing text for err, or fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var herr *HTTPError
	if errors.As(err, &herr) && herr.Message != "" {
		return herr.Message
	}
	var merr *MalformedResponseError
	if errors.As(err, &merr) {
		return merr.Error()
	}
	return fallback
}

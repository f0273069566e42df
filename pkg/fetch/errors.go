package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// Error domains.
const (
	DomainNetworking = "jsonfetch.networking"
	DomainTransport  = "jsonfetch.transport"
	DomainJSON       = "encoding/json"
	DomainHTTPStatus = "jsonfetch.http_status"
)

// Reserved error codes. Unexpected-status and transport errors use the HTTP
// status code instead.
const (
	CodeMissingResponse = 100
	CodeDecodeRejected  = 200
	CodeMalformedBody   = 300
)

// Kind classifies where a fetch failed.
type Kind uint8

const (
	// KindTransportUnavailable means no response was received at all.
	KindTransportUnavailable Kind = iota + 1
	// KindTransportFailure means a response arrived but the transport still reported an error.
	KindTransportFailure
	// KindBodyParse means status 200 with a body that is not a JSON object.
	KindBodyParse
	// KindDecodeRejected means the decode function returned no value.
	KindDecodeRejected
	// KindUnexpectedStatus means the status code was not 200.
	KindUnexpectedStatus
)

func (k Kind) String() string {
	switch k {
	case KindTransportUnavailable:
		return "transport_unavailable"
	case KindTransportFailure:
		return "transport_failure"
	case KindBodyParse:
		return "body_parse"
	case KindDecodeRejected:
		return "decode_rejected"
	case KindUnexpectedStatus:
		return "unexpected_status"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. A sentinel with a zero Code matches every error of its Kind.
var (
	ErrMissingResponse  = &Error{Kind: KindTransportUnavailable, Domain: DomainNetworking, Code: CodeMissingResponse}
	ErrTransportFailure = &Error{Kind: KindTransportFailure, Domain: DomainTransport}
	ErrMalformedBody    = &Error{Kind: KindBodyParse, Domain: DomainJSON, Code: CodeMalformedBody}
	ErrDecodeRejected   = &Error{Kind: KindDecodeRejected, Domain: DomainNetworking, Code: CodeDecodeRejected}
	ErrUnexpectedStatus = &Error{Kind: KindUnexpectedStatus, Domain: DomainHTTPStatus}
)

// Error is the failure delivered through a Result.
type Error struct {
	Kind    Kind
	Domain  string
	Code    int
	Message string

	// StatusCode is the HTTP status of the response, 0 when none was received.
	StatusCode int
	// Payload is the rejected payload for KindDecodeRejected.
	Payload Payload

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d", e.Domain, e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil && !strings.Contains(e.Message, e.cause.Error()) {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying transport or parse error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches sentinels by kind and, when the target carries one, by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == 0 || t.Code == e.Code
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func missingResponse(cause error) *Error {
	return &Error{
		Kind:    KindTransportUnavailable,
		Domain:  DomainNetworking,
		Code:    CodeMissingResponse,
		Message: "missing HTTP response",
		cause:   cause,
	}
}

func transportFailure(status int, cause error) *Error {
	return &Error{
		Kind:       KindTransportFailure,
		Domain:     DomainTransport,
		Code:       status,
		Message:    cause.Error(),
		StatusCode: status,
		cause:      cause,
	}
}

func malformedBody(status int, cause error) *Error {
	return &Error{
		Kind:       KindBodyParse,
		Domain:     DomainJSON,
		Code:       CodeMalformedBody,
		Message:    "response body is not a JSON object",
		StatusCode: status,
		cause:      cause,
	}
}

func decodeRejected(payload Payload) *Error {
	return &Error{
		Kind:    KindDecodeRejected,
		Domain:  DomainNetworking,
		Code:    CodeDecodeRejected,
		Message: "decode function rejected payload",
		Payload: payload,
	}
}

func unexpectedStatus(status int, body []byte) *Error {
	return &Error{
		Kind:       KindUnexpectedStatus,
		Domain:     DomainHTTPStatus,
		Code:       status,
		Message:    fmt.Sprintf("unexpected response status %d body: %s", status, responseSnippet(body)),
		StatusCode: status,
	}
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

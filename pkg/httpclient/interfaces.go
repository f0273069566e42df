package httpclient

import (
	"context"
	"net/http"
)

// Request describes a single outbound HTTP call. It is passed by value and never
// modified once handed to a Client.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
//
// Do returns a nil Response when no response was received at all (DNS failure,
// refused connection, timeout before headers). When a response arrived but the
// exchange still failed, both the Response and the error are returned.
type Client interface {
	Do(ctx context.Context, req Request) (Response, error)
}

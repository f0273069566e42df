package fetch

import (
	"context"
	"net/http"

	"github.com/samvad-hq/jsonfetch/pkg/httpclient"
)

// StatusPolicy decides what happens to responses whose status is not 200.
type StatusPolicy uint8

const (
	// SurfaceNonOK delivers a KindUnexpectedStatus failure.
	SurfaceNonOK StatusPolicy = iota
	// DropNonOK only logs the status; no result is delivered.
	DropNonOK
)

// ParseStatusPolicy maps "surface" and "drop" onto a policy. Anything else surfaces.
func ParseStatusPolicy(s string) StatusPolicy {
	if s == "drop" {
		return DropNonOK
	}
	return SurfaceNonOK
}

func (p StatusPolicy) String() string {
	if p == DropNonOK {
		return "drop"
	}
	return "surface"
}

// Outcome is the classified result of one transport call. At most one of
// Payload and Err is set; both are empty only when a non-200 response was dropped.
type Outcome struct {
	Payload  Payload
	Err      *Error
	Response httpclient.Response
}

// Dropped reports whether the outcome carries nothing to deliver.
func (o Outcome) Dropped() bool { return o.Payload == nil && o.Err == nil }

// Manager issues requests and classifies their outcome. Fetch and Await are
// written against it; implement it directly for custom behaviour.
type Manager interface {
	// ExecuteAndClassify runs req once without blocking and calls done exactly
	// once, from the goroutine that performed the request.
	ExecuteAndClassify(ctx context.Context, req httpclient.Request, done func(Outcome))
	// Dispatcher is where decoding and callbacks run.
	Dispatcher() Dispatcher
	Logger() Logger
}

// Client is the default Manager backed by an httpclient.Client.
type Client struct {
	http       httpclient.Client
	dispatcher Dispatcher
	policy     StatusPolicy
	log        Logger
}

var _ Manager = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithDispatcher sets the designated execution context for callbacks.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Client) {
		if d != nil {
			c.dispatcher = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = ensureLogger(log) }
}

// WithStatusPolicy sets the non-200 handling.
func WithStatusPolicy(p StatusPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// New builds a Client. A nil transport falls back to a resty client without a
// timeout. Without WithDispatcher callbacks run one at a time through a Serial
// owned by the client; pass Immediate{} to let them run concurrently.
func New(transport httpclient.Client, opts ...Option) *Client {
	if transport == nil {
		transport = httpclient.NewRestyClient(0)
	}
	c := &Client{
		http:       transport,
		dispatcher: &Serial{},
		policy:     SurfaceNonOK,
		log:        noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Dispatcher() Dispatcher { return c.dispatcher }
func (c *Client) Logger() Logger         { return c.log }

// ExecuteAndClassify runs Execute on a new goroutine and passes its outcome to done.
func (c *Client) ExecuteAndClassify(ctx context.Context, req httpclient.Request, done func(Outcome)) {
	go func() {
		done(c.Execute(ctx, req))
	}()
}

// Execute performs req exactly once on the calling goroutine and classifies the response.
func (c *Client) Execute(ctx context.Context, req httpclient.Request) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := c.http.Do(ctx, req)
	return c.classify(req, resp, err)
}

func (c *Client) classify(req httpclient.Request, resp httpclient.Response, err error) Outcome {
	if resp == nil {
		c.log.WarnObj("no http response", "fetch_error", map[string]any{
			"url":   req.URL,
			"error": errString(err),
		})
		return Outcome{Err: missingResponse(err)}
	}

	status := resp.StatusCode()
	if err != nil {
		c.log.WarnObj("http transport failed", "fetch_error", map[string]any{
			"url":    req.URL,
			"status": status,
			"error":  err.Error(),
		})
		return Outcome{Response: resp, Err: transportFailure(status, err)}
	}

	if status != http.StatusOK {
		c.log.WarnObj("unexpected response status", "fetch_status", map[string]any{
			"url":    req.URL,
			"status": status,
			"policy": c.policy.String(),
		})
		if c.policy == DropNonOK {
			return Outcome{Response: resp}
		}
		return Outcome{Response: resp, Err: unexpectedStatus(status, resp.Body())}
	}

	payload, perr := ParsePayload(resp.Body())
	if perr != nil {
		c.log.WarnObj("response body parse failed", "fetch_error", map[string]any{
			"url":   req.URL,
			"error": perr.Error(),
		})
		return Outcome{Response: resp, Err: malformedBody(status, perr)}
	}

	c.log.DebugObj("response classified", "fetch_response", map[string]any{
		"url":  req.URL,
		"keys": len(payload),
	})
	return Outcome{Response: resp, Payload: payload}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

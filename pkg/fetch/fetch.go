// Package fetch issues HTTP requests, classifies the response, decodes JSON
// object bodies and delivers exactly one typed Result per request.
package fetch

import (
	"context"

	"github.com/samvad-hq/jsonfetch/pkg/httpclient"
)

// Fetch issues req through m and returns immediately. When the transport
// completes, decoding and callback run on m's Dispatcher while the transport
// goroutine waits. callback fires at most once; it does not fire when a non-200
// response is dropped.
func Fetch[T any](ctx context.Context, m Manager, req httpclient.Request, decode DecodeFunc[T], callback func(Result[T])) {
	if decode == nil {
		panic("fetch: nil DecodeFunc")
	}
	if callback == nil {
		panic("fetch: nil callback")
	}

	m.ExecuteAndClassify(ctx, req, func(o Outcome) {
		err := m.Dispatcher().Sync(func() {
			if res, ok := resolve(o, decode); ok {
				callback(res)
			}
		})
		if err != nil {
			ensureLogger(m.Logger()).ErrorObj("fetch result not delivered", "fetch_delivery", map[string]any{
				"url":   req.URL,
				"error": err.Error(),
			})
		}
	})
}

// Await issues req through m and blocks until its outcome is known, decoding on
// the calling goroutine. ok is false when a non-200 response was dropped.
//
// If ctx ends first Await returns a KindTransportUnavailable failure wrapping
// ctx.Err(); the outcome that arrives later is discarded.
func Await[T any](ctx context.Context, m Manager, req httpclient.Request, decode DecodeFunc[T]) (res Result[T], ok bool) {
	if decode == nil {
		panic("fetch: nil DecodeFunc")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ch := make(chan Outcome, 1)
	m.ExecuteAndClassify(ctx, req, func(o Outcome) { ch <- o })
	select {
	case o := <-ch:
		return resolve(o, decode)
	case <-ctx.Done():
		return Failure[T](missingResponse(ctx.Err())), true
	}
}

// resolve turns a transport outcome into a Result. It is the only place that
// applies the decode function.
func resolve[T any](o Outcome, decode DecodeFunc[T]) (Result[T], bool) {
	if o.Payload == nil {
		if o.Err != nil {
			return Failure[T](o.Err), true
		}
		return Result[T]{}, false
	}

	v, ok := decode(o.Payload)
	if !ok {
		return Failure[T](decodeRejected(o.Payload)), true
	}
	return Success(v), true
}

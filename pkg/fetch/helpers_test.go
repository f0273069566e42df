package fetch

import (
	"context"
	"net/http"
	"sync"

	"github.com/samvad-hq/jsonfetch/pkg/httpclient"
)

// fakeResponse is a canned httpclient.Response.
type fakeResponse struct {
	status int
	body   []byte
}

func (f *fakeResponse) Body() []byte        { return f.body }
func (f *fakeResponse) StatusCode() int     { return f.status }
func (f *fakeResponse) Header() http.Header { return http.Header{} }

// fakeTransport returns a preset response/error and counts calls.
type fakeTransport struct {
	mu    sync.Mutex
	resp  httpclient.Response
	err   error
	calls int
	last  httpclient.Request
}

func (f *fakeTransport) Do(_ context.Context, req httpclient.Request) (httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.resp, f.err
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func respond(status int, body string) *fakeTransport {
	return &fakeTransport{resp: &fakeResponse{status: status, body: []byte(body)}}
}

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingLogger) record(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recordingLogger) InfoObj(msg, _ string, _ interface{})  { r.record(msg) }
func (r *recordingLogger) DebugObj(msg, _ string, _ interface{}) { r.record(msg) }
func (r *recordingLogger) WarnObj(msg, _ string, _ interface{})  { r.record(msg) }
func (r *recordingLogger) ErrorObj(msg, _ string, _ interface{}) { r.record(msg) }

func (r *recordingLogger) has(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

type weather struct {
	Temp float64
	City string
}

func (w *weather) DecodePayload(p Payload) bool {
	temp, ok := p.Float64("temp")
	if !ok {
		return false
	}
	city, ok := p.Str("city")
	if !ok {
		return false
	}
	w.Temp, w.City = temp, city
	return true
}

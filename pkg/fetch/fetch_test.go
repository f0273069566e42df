package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/jsonfetch/pkg/httpclient"
)

// startLoop runs a MainLoop on its own goroutine for the duration of the test.
func startLoop(t *testing.T) *MainLoop {
	t.Helper()
	loop := NewMainLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

// collect gathers callback invocations.
type collect[T any] struct {
	mu      sync.Mutex
	results []Result[T]
	got     chan struct{}
}

func newCollect[T any]() *collect[T] {
	return &collect[T]{got: make(chan struct{}, 16)}
}

func (c *collect[T]) callback(r Result[T]) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collect[T]) wait(t *testing.T) Result[T] {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(2 * time.Second):
		t.Fatalf("callback was not invoked")
	}
	// give a second, erroneous delivery a chance to show up
	time.Sleep(20 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) != 1 {
		t.Fatalf("expected exactly one callback, got %d", len(c.results))
	}
	return c.results[0]
}

func TestFetchWeatherSuccess(t *testing.T) {
	loop := startLoop(t)
	client := New(respond(http.StatusOK, `{"temp": 21.5, "city": "Kyiv"}`), WithDispatcher(loop))
	got := newCollect[weather]()

	Fetch(context.Background(), client, httpclient.Request{URL: "https://api.example.com"}, DecodeAs[weather](), got.callback)

	res := got.wait(t)
	w, ok := res.Value()
	if !ok {
		t.Fatalf("expected success, got %v", res.Err())
	}
	if w != (weather{Temp: 21.5, City: "Kyiv"}) {
		t.Fatalf("unexpected weather %+v", w)
	}
	if res.Err() != nil {
		t.Fatalf("success must not carry an error")
	}
}

func TestFetchDecodeRejected(t *testing.T) {
	loop := startLoop(t)
	client := New(respond(http.StatusOK, `{"temp": "not-a-number"}`), WithDispatcher(loop))
	got := newCollect[weather]()

	Fetch(context.Background(), client, httpclient.Request{}, DecodeAs[weather](), got.callback)

	res := got.wait(t)
	if res.IsSuccess() {
		t.Fatalf("expected failure")
	}
	fe, ok := res.Failed()
	if !ok || fe.Code != CodeDecodeRejected {
		t.Fatalf("expected code 200, got %+v", fe)
	}
	if !errors.Is(res.Err(), ErrDecodeRejected) {
		t.Fatalf("expected ErrDecodeRejected match")
	}
	if s, _ := fe.Payload.Str("temp"); s != "not-a-number" {
		t.Fatalf("expected rejected payload to be attached, got %v", fe.Payload)
	}
	if _, ok := res.Value(); ok {
		t.Fatalf("failure must not carry a value")
	}
}

func TestFetchMissingResponse(t *testing.T) {
	loop := startLoop(t)
	client := New(&fakeTransport{err: errors.New("no such host")}, WithDispatcher(loop))
	got := newCollect[weather]()

	Fetch(context.Background(), client, httpclient.Request{}, DecodeAs[weather](), got.callback)

	fe, ok := got.wait(t).Failed()
	if !ok || fe.Code != CodeMissingResponse || fe.Payload != nil {
		t.Fatalf("expected code 100 without payload, got %+v", fe)
	}
}

func TestFetchMalformedJSON(t *testing.T) {
	loop := startLoop(t)
	client := New(respond(http.StatusOK, `{"temp": 21.5,`), WithDispatcher(loop))
	got := newCollect[weather]()

	Fetch(context.Background(), client, httpclient.Request{}, DecodeAs[weather](), got.callback)

	res := got.wait(t)
	if !errors.Is(res.Err(), ErrMalformedBody) {
		t.Fatalf("expected malformed body, got %v", res.Err())
	}
	if errors.Unwrap(res.Err()) == nil {
		t.Fatalf("expected parse error to be wrapped")
	}
}

func TestFetchNonOKSurfaced(t *testing.T) {
	loop := startLoop(t)
	client := New(respond(http.StatusNotFound, `{"cod":"404"}`), WithDispatcher(loop))
	got := newCollect[weather]()

	Fetch(context.Background(), client, httpclient.Request{}, DecodeAs[weather](), got.callback)

	fe, ok := got.wait(t).Failed()
	if !ok || fe.Kind != KindUnexpectedStatus || fe.Code != http.StatusNotFound {
		t.Fatalf("expected 404 failure, got %+v", fe)
	}
}

func TestFetchNonOKDroppedNeverCallsBack(t *testing.T) {
	loop := startLoop(t)
	transport := respond(http.StatusNotFound, `{"cod":"404"}`)
	client := New(transport, WithDispatcher(loop), WithStatusPolicy(DropNonOK))

	var calls atomic.Int32
	Fetch(context.Background(), client, httpclient.Request{}, DecodeAs[weather](), func(Result[weather]) {
		calls.Add(1)
	})

	deadline := time.Now().Add(time.Second)
	for transport.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// let the dispatcher hand-off finish
	if err := loop.Sync(func() {}); err != nil {
		t.Fatalf("loop sync: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("expected no callback for dropped status, got %d", calls.Load())
	}
}

func TestFetchReturnsBeforeTransportCompletes(t *testing.T) {
	release := make(chan struct{})
	transport := &blockingTransport{release: release, resp: &fakeResponse{status: http.StatusOK, body: []byte(`{}`)}}
	client := New(transport)
	got := newCollect[Payload]()

	Fetch(context.Background(), client, httpclient.Request{}, AcceptObject, got.callback)

	select {
	case <-got.got:
		t.Fatalf("callback fired before transport completed")
	default:
	}
	close(release)
	if _, ok := got.wait(t).Value(); !ok {
		t.Fatalf("expected success")
	}
}

func TestFetchCallbacksRunSeriallyOnLoop(t *testing.T) {
	loop := NewMainLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(ctx)
	}()

	client := New(respond(http.StatusOK, `{"temp": 1, "city": "Odesa"}`), WithDispatcher(loop))

	const n = 20
	var (
		active, maxActive atomic.Int32
		wg                sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		Fetch(ctx, client, httpclient.Request{}, DecodeAs[weather](), func(Result[weather]) {
			defer wg.Done()
			cur := active.Add(1)
			if cur > maxActive.Load() {
				maxActive.Store(cur)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		})
	}
	wg.Wait()

	if maxActive.Load() != 1 {
		t.Fatalf("expected callbacks to be serialized, max concurrency %d", maxActive.Load())
	}
	cancel()
	<-loopDone
}

func TestFetchLogsWhenLoopStopped(t *testing.T) {
	loop := NewMainLoop()
	loop.Stop()
	log := &recordingLogger{}
	client := New(respond(http.StatusOK, `{}`), WithDispatcher(loop), WithLogger(log))

	var calls atomic.Int32
	Fetch(context.Background(), client, httpclient.Request{}, AcceptObject, func(Result[Payload]) { calls.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for !log.has("fetch result not delivered") {
		if time.Now().After(deadline) {
			t.Fatalf("expected undelivered result to be logged")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() != 0 {
		t.Fatalf("callback must not run on a stopped loop")
	}
}

func TestAwait(t *testing.T) {
	res, ok := Await(context.Background(), New(respond(http.StatusOK, `{"temp": 21.5, "city": "Kyiv"}`)), httpclient.Request{}, DecodeAs[weather]())
	if !ok {
		t.Fatalf("expected a result")
	}
	w, err := res.Get()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.City != "Kyiv" || w.Temp != 21.5 {
		t.Fatalf("unexpected weather %+v", w)
	}
}

func TestAwaitDropped(t *testing.T) {
	client := New(respond(http.StatusBadGateway, ""), WithStatusPolicy(DropNonOK))
	if _, ok := Await(context.Background(), client, httpclient.Request{}, AcceptObject); ok {
		t.Fatalf("expected dropped outcome")
	}
}

func TestFetchDefaultClientRunsCallbacksOneAtATime(t *testing.T) {
	client := New(respond(http.StatusOK, `{"temp": 21.5, "city": "Kyiv"}`))

	const n = 20
	var (
		wg      sync.WaitGroup
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		Fetch(context.Background(), client, httpclient.Request{}, DecodeAs[weather](), func(Result[weather]) {
			defer wg.Done()
			cur := active.Add(1)
			for {
				prev := maxSeen.Load()
				if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("callbacks did not complete")
	}
	if got := maxSeen.Load(); got != 1 {
		t.Fatalf("expected callbacks to run one at a time, saw %d concurrently", got)
	}
}

// stuckTransport ignores ctx and answers only when released.
type stuckTransport struct {
	release chan struct{}
}

func (s *stuckTransport) Do(context.Context, httpclient.Request) (httpclient.Response, error) {
	<-s.release
	return &fakeResponse{status: http.StatusOK, body: []byte(`{}`)}, nil
}

func TestAwaitReturnsWhenContextEnds(t *testing.T) {
	transport := &stuckTransport{release: make(chan struct{})}
	defer close(transport.release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var (
		res Result[Payload]
		ok  bool
	)
	go func() {
		defer close(done)
		res, ok = Await(ctx, New(transport), httpclient.Request{}, AcceptObject)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Await ignored context cancellation")
	}
	if !ok {
		t.Fatalf("expected a failure result, got dropped")
	}
	fe, failed := res.Failed()
	if !failed || fe.Code != CodeMissingResponse {
		t.Fatalf("expected missing response failure, got %+v", fe)
	}
	if !errors.Is(res.Err(), context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", res.Err())
	}
}

func TestFetchPanicsOnNilDecode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Fetch[weather](context.Background(), New(&fakeTransport{}), httpclient.Request{}, nil, func(Result[weather]) {})
}

// blockingTransport waits for release before answering.
type blockingTransport struct {
	release chan struct{}
	resp    httpclient.Response
}

func (b *blockingTransport) Do(ctx context.Context, _ httpclient.Request) (httpclient.Response, error) {
	select {
	case <-b.release:
		return b.resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/jsonfetch/internal/domain"
	"github.com/samvad-hq/jsonfetch/internal/logger"
	"github.com/samvad-hq/jsonfetch/pkg/endpoints"
	"github.com/samvad-hq/jsonfetch/pkg/fetch"
	"github.com/samvad-hq/jsonfetch/pkg/httpclient"
	"github.com/samvad-hq/jsonfetch/pkg/publishers"
)

// EventPublisher publishes fresh observations downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper remembers which observations were already published.
type Deduper interface {
	SeenObservation(fingerprint string) (bool, error)
	MarkObservation(fingerprint string) error
}

// Stats counts what happened to one endpoint's polls.
type Stats struct {
	Attempts        int       `json:"attempts"`
	Successes       int       `json:"successes"`
	Failures        int       `json:"failures"`
	Duplicates      int       `json:"duplicates"`
	Published       int       `json:"published"`
	PublishFailures int       `json:"publish_failures"`
	LastError       string    `json:"last_error,omitempty"`
	LastResultAt    time.Time `json:"last_result_at"`
}

// Service polls endpoints through a fetch.Manager. Result callbacks run on the
// manager's dispatcher, which owns stats and pending; nothing else touches them.
type Service struct {
	manager   fetch.Manager
	decoders  *DecoderRegistry
	publisher EventPublisher
	dedupe    Deduper
	log       logger.Logger
	inflight  sync.WaitGroup

	stats   map[string]*Stats
	pending map[string]struct{}
}

// NewService wires a poller. A nil decoder registry means DefaultDecoders.
func NewService(m fetch.Manager, decoders *DecoderRegistry, pub EventPublisher, dedupe Deduper, log logger.Logger) *Service {
	if decoders == nil {
		decoders = DefaultDecoders()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		manager:   m,
		decoders:  decoders,
		publisher: pub,
		dedupe:    dedupe,
		log:       log,
		stats:     make(map[string]*Stats),
		pending:   make(map[string]struct{}),
	}
}

// Dispatch starts one fetch per endpoint and returns without waiting for them.
// Endpoints whose type has no decoder are reported in the returned error.
func (s *Service) Dispatch(ctx context.Context, eps []endpoints.Endpoint) error {
	if s == nil || s.manager == nil {
		return fmt.Errorf("poller service is not initialized")
	}
	if len(eps) == 0 {
		return fmt.Errorf("no endpoints configured for polling")
	}

	tracked := trackedManager{Manager: s.manager, wg: &s.inflight}
	var errs []error
	for _, ep := range eps {
		decode, err := s.decoders.For(ep)
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", ep.ID, err))
			continue
		}
		ep := ep
		fetch.Fetch(ctx, tracked, ep.Request(), decode, func(res fetch.Result[domain.Observation]) {
			s.handle(ctx, ep, res)
		})
	}
	return errors.Join(errs...)
}

// Wait blocks until every dispatched fetch and publish has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Snapshot copies the per-endpoint stats. It hops onto the dispatcher, so it
// must not be called from a result callback.
func (s *Service) Snapshot() (map[string]Stats, error) {
	out := make(map[string]Stats)
	err := s.manager.Dispatcher().Sync(func() {
		for id, st := range s.stats {
			out[id] = *st
		}
	})
	return out, err
}

// handle runs on the dispatcher.
func (s *Service) handle(ctx context.Context, ep endpoints.Endpoint, res fetch.Result[domain.Observation]) {
	st := s.statsFor(ep.ID)
	st.Attempts++
	st.LastResultAt = time.Now().UTC()

	obs, err := res.Get()
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
		s.logFailure(ep, err)
		return
	}
	st.Successes++

	if _, busy := s.pending[obs.Fingerprint]; busy {
		st.Duplicates++
		return
	}
	if s.dedupe != nil {
		seen, err := s.dedupe.SeenObservation(obs.Fingerprint)
		if err != nil {
			s.log.WarnObj("dedupe lookup failed; publishing anyway", "poller_dedupe", map[string]any{
				"endpoint_id": ep.ID,
				"error":       err.Error(),
			})
		}
		if seen {
			st.Duplicates++
			s.log.DebugObj("observation unchanged", "poller_duplicate", map[string]any{
				"endpoint_id": ep.ID,
				"fingerprint": obs.Fingerprint,
			})
			return
		}
	}
	if s.publisher == nil {
		return
	}

	s.pending[obs.Fingerprint] = struct{}{}
	s.inflight.Add(1)
	go s.publish(ctx, ep, obs)
}

// publish runs off the dispatcher and reports back onto it.
func (s *Service) publish(ctx context.Context, ep endpoints.Endpoint, obs domain.Observation) {
	defer s.inflight.Done()

	delivered, err := s.publisher.Publish(ctx, publishers.NewEvent(ep.ID, ep.Name, obs))
	if err != nil {
		s.log.ErrorObj("observation publish failed", "poller_publish", map[string]any{
			"endpoint_id": ep.ID,
			"delivered":   delivered,
			"error":       err.Error(),
		})
	}
	if delivered > 0 && s.dedupe != nil {
		if markErr := s.dedupe.MarkObservation(obs.Fingerprint); markErr != nil {
			s.log.WarnObj("dedupe mark failed", "poller_dedupe", map[string]any{
				"endpoint_id": ep.ID,
				"error":       markErr.Error(),
			})
		}
	}

	syncErr := s.manager.Dispatcher().Sync(func() {
		delete(s.pending, obs.Fingerprint)
		st := s.statsFor(ep.ID)
		if delivered > 0 {
			st.Published++
		}
		if err != nil {
			st.PublishFailures++
			st.LastError = err.Error()
		}
	})
	if syncErr != nil {
		s.log.DebugObj("publish outcome not recorded", "poller_publish", map[string]any{
			"endpoint_id": ep.ID,
			"error":       syncErr.Error(),
		})
	}
}

func (s *Service) statsFor(id string) *Stats {
	st, ok := s.stats[id]
	if !ok {
		st = &Stats{}
		s.stats[id] = st
	}
	return st
}

func (s *Service) logFailure(ep endpoints.Endpoint, err error) {
	fields := map[string]any{
		"endpoint_id": ep.ID,
		"url":         ep.URL,
		"error":       err.Error(),
	}
	if fe, ok := fetch.AsError(err); ok {
		fields["kind"] = fe.Kind.String()
		fields["domain"] = fe.Domain
		fields["code"] = fe.Code
	}
	s.log.WarnObj("endpoint poll failed", "poller_failure", fields)
}

// trackedManager counts requests in flight until their callback has run.
type trackedManager struct {
	fetch.Manager
	wg *sync.WaitGroup
}

func (t trackedManager) ExecuteAndClassify(ctx context.Context, req httpclient.Request, done func(fetch.Outcome)) {
	t.wg.Add(1)
	t.Manager.ExecuteAndClassify(ctx, req, func(o fetch.Outcome) {
		defer t.wg.Done()
		done(o)
	})
}

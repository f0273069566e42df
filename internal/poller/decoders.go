package poller

import (
	"fmt"
	"strings"
	"sync"

	"github.com/samvad-hq/jsonfetch/internal/domain"
	"github.com/samvad-hq/jsonfetch/pkg/endpoints"
	"github.com/samvad-hq/jsonfetch/pkg/fetch"
)

// Endpoint types understood by the default decoder registry.
const (
	TypeWeather   = "weather"
	TypeOpenMeteo = "open_meteo"
	TypeJSON      = "json"
)

// DecoderFactory builds the observation decoder for one endpoint.
type DecoderFactory func(ep endpoints.Endpoint) fetch.DecodeFunc[domain.Observation]

// Observe lifts a typed decoder into an observation decoder. fields flattens
// the decoded value into observation fields.
func Observe[T any](decode fetch.DecodeFunc[T], fields func(T) map[string]any) DecoderFactory {
	return func(ep endpoints.Endpoint) fetch.DecodeFunc[domain.Observation] {
		return func(p fetch.Payload) (domain.Observation, bool) {
			v, ok := decode(p)
			if !ok {
				return domain.Observation{}, false
			}
			return domain.NewObservation(ep.ID, ep.Type, fields(v)), true
		}
	}
}

// DecoderRegistry maps endpoint types to decoder factories.
type DecoderRegistry struct {
	mu        sync.RWMutex
	factories map[string]DecoderFactory
}

// NewDecoderRegistry returns an empty registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{factories: make(map[string]DecoderFactory)}
}

// DefaultDecoders registers the built-in endpoint types.
func DefaultDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(TypeWeather, Observe(fetch.DecodeAs[domain.Weather](), domain.Weather.Fields))
	reg.Register(TypeOpenMeteo, Observe(decodeOpenMeteo, domain.OpenMeteo.Fields))
	reg.Register(TypeJSON, Observe(fetch.AcceptObject, fetch.Payload.Raw))
	return reg
}

// decodeOpenMeteo requires the "current" block to carry a timestamp.
func decodeOpenMeteo(p fetch.Payload) (domain.OpenMeteo, bool) {
	if _, ok := p.Object("current"); !ok {
		return domain.OpenMeteo{}, false
	}
	om, ok := fetch.DecodeStruct[domain.OpenMeteo]()(p)
	if !ok || om.Current.Time == "" {
		return domain.OpenMeteo{}, false
	}
	return om, true
}

// Register associates a factory with an endpoint type.
func (r *DecoderRegistry) Register(typ string, factory DecoderFactory) {
	if typ = strings.ToLower(strings.TrimSpace(typ)); typ == "" || factory == nil {
		return
	}
	r.mu.Lock()
	r.factories[typ] = factory
	r.mu.Unlock()
}

// For returns the decoder for ep.
func (r *DecoderRegistry) For(ep endpoints.Endpoint) (fetch.DecodeFunc[domain.Observation], error) {
	r.mu.RLock()
	factory := r.factories[strings.ToLower(ep.Type)]
	r.mu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("no decoder registered for endpoint type %q", ep.Type)
	}
	return factory(ep), nil
}

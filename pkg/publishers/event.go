package publishers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samvad-hq/jsonfetch/internal/domain"
)

// Event is the message published for every new observation.
type Event struct {
	EndpointID   string             `json:"endpoint_id"`
	EndpointName string             `json:"endpoint_name"`
	Observation  domain.Observation `json:"observation"`
	FetchedAt    time.Time          `json:"fetched_at"`
}

// NewEvent wraps obs for the named endpoint, stamped with the current UTC time.
func NewEvent(endpointID, endpointName string, obs domain.Observation) Event {
	return Event{
		EndpointID:   endpointID,
		EndpointName: endpointName,
		Observation:  obs,
		FetchedAt:    time.Now().UTC(),
	}
}

// encode renders the event as the JSON message body shared by the queue sinks.
func (e Event) encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// attributes are the message attributes queue sinks attach for routing.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{"endpoint_id": e.EndpointID}
	if e.Observation.Kind != "" {
		attrs["kind"] = e.Observation.Kind
	}
	return attrs
}

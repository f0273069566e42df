package domain

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic fingerprint
	"encoding/hex"
	"encoding/json"

	"github.com/samvad-hq/jsonfetch/pkg/fetch"
)

// Observation is one decoded reading taken from an endpoint.
type Observation struct {
	EndpointID  string         `json:"endpoint_id"`
	Kind        string         `json:"kind"`
	Fields      map[string]any `json:"fields"`
	Fingerprint string         `json:"fingerprint"`
}

// NewObservation builds an observation and derives its fingerprint from the
// endpoint id and fields.
func NewObservation(endpointID, kind string, fields map[string]any) Observation {
	if fields == nil {
		fields = map[string]any{}
	}
	return Observation{
		EndpointID:  endpointID,
		Kind:        kind,
		Fields:      fields,
		Fingerprint: fingerprint(endpointID, fields),
	}
}

func fingerprint(endpointID string, fields map[string]any) string {
	// encoding/json sorts map keys, so equal fields hash equally
	data, err := json.Marshal(fields)
	if err != nil {
		data = nil
	}
	sum := sha1.Sum(append([]byte(endpointID+"\x00"), data...))
	return hex.EncodeToString(sum[:])
}

// Weather is the current conditions reported by a simple weather API:
//
//	{"temp": 21.5, "city": "Kyiv"}
type Weather struct {
	Temp float64 `json:"temp"`
	City string  `json:"city"`
}

// DecodePayload requires a numeric temp and a non-empty city.
func (w *Weather) DecodePayload(p fetch.Payload) bool {
	temp, ok := p.Float64("temp")
	if !ok {
		return false
	}
	city, ok := p.Str("city")
	if !ok || city == "" {
		return false
	}
	w.Temp = temp
	w.City = city
	return true
}

// Fields flattens the weather into observation fields.
func (w Weather) Fields() map[string]any {
	return map[string]any{"temp": w.Temp, "city": w.City}
}

// OpenMeteoCurrent is the "current" block of an Open-Meteo forecast response.
type OpenMeteoCurrent struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature_2m"`
	WeatherCode int     `json:"weather_code"`
}

// OpenMeteo is the subset of an Open-Meteo forecast response the probe keeps.
type OpenMeteo struct {
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Current   OpenMeteoCurrent `json:"current"`
}

// Fields flattens the forecast into observation fields.
func (o OpenMeteo) Fields() map[string]any {
	return map[string]any{
		"latitude":     o.Latitude,
		"longitude":    o.Longitude,
		"time":         o.Current.Time,
		"temperature":  o.Current.Temperature,
		"weather_code": o.Current.WeatherCode,
	}
}

package domain

import (
	"testing"

	"github.com/samvad-hq/jsonfetch/pkg/fetch"
)

func TestWeatherDecodePayload(t *testing.T) {
	p, err := fetch.ParsePayload([]byte(`{"temp": 21.5, "city": "Kyiv"}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	w, ok := fetch.DecodeAs[Weather]()(p)
	if !ok {
		t.Fatalf("expected weather to decode")
	}
	if w != (Weather{Temp: 21.5, City: "Kyiv"}) {
		t.Fatalf("unexpected weather %+v", w)
	}
}

func TestWeatherDecodePayloadRejects(t *testing.T) {
	for _, body := range []string{
		`{"temp": "not-a-number"}`,
		`{"temp": 3}`,
		`{"temp": 3, "city": ""}`,
		`{"city": "Kyiv"}`,
	} {
		p, err := fetch.ParsePayload([]byte(body))
		if err != nil {
			t.Fatalf("ParsePayload(%s): %v", body, err)
		}
		var w Weather
		if w.DecodePayload(p) {
			t.Fatalf("expected %s to be rejected", body)
		}
	}
}

func TestObservationFingerprint(t *testing.T) {
	a := NewObservation("kyiv", "weather", map[string]any{"temp": 21.5, "city": "Kyiv"})
	b := NewObservation("kyiv", "weather", map[string]any{"city": "Kyiv", "temp": 21.5})
	c := NewObservation("lviv", "weather", map[string]any{"city": "Kyiv", "temp": 21.5})

	if a.Fingerprint == "" || a.Fingerprint != b.Fingerprint {
		t.Fatalf("equal fields must share a fingerprint")
	}
	if a.Fingerprint == c.Fingerprint {
		t.Fatalf("endpoint id must be part of the fingerprint")
	}
	if NewObservation("x", "json", nil).Fields == nil {
		t.Fatalf("fields must never be nil")
	}
}

package server

import (
	"errors"
	"testing"
)

func TestDecodeVitalsCoercesMissingAndInvalidFields(t *testing.T) {
	cases := []struct {
		name        string
		payload     string
		heartRate   float64
		temperature float64
		sugarLevel  float64
	}{
		{
			name:      "single field",
			payload:   `{"heartRate": 72}`,
			heartRate: 72,
		},
		{
			name:        "all fields",
			payload:     `{"heartRate": 68, "temperature": 36.7, "sugarLevel": 5.2}`,
			heartRate:   68,
			temperature: 36.7,
			sugarLevel:  5.2,
		},
		{
			name:       "null and non-numeric coerce to zero",
			payload:    `{"heartRate": null, "temperature": "warm", "sugarLevel": "4.2"}`,
			sugarLevel: 4.2,
		},
		{
			name:    "empty object",
			payload: `{}`,
		},
		{
			name:      "negative values accepted",
			payload:   `{"heartRate": -10}`,
			heartRate: -10,
		},
		{
			name:    "unknown fields ignored",
			payload: `{"posture": "slouched"}`,
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			reading, err := DecodeVitals([]byte(testCase.payload))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if reading.HeartRate != testCase.heartRate {
				t.Errorf("expected heartRate %v, got %v", testCase.heartRate, reading.HeartRate)
			}
			if reading.Temperature != testCase.temperature {
				t.Errorf("expected temperature %v, got %v", testCase.temperature, reading.Temperature)
			}
			if reading.SugarLevel != testCase.sugarLevel {
				t.Errorf("expected sugarLevel %v, got %v", testCase.sugarLevel, reading.SugarLevel)
			}
			if !reading.Timestamp.IsZero() {
				t.Errorf("expected no timestamp from decode, got %v", reading.Timestamp)
			}
		})
	}
}

func TestDecodeVitalsRejectsNonObjectPayloads(t *testing.T) {
	for _, payload := range []string{"", "not json", "[1,2,3]", `"quoted"`, "42", "null"} {
		if _, err := DecodeVitals([]byte(payload)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("payload %q: expected ErrMalformedPayload, got %v", payload, err)
		}
	}
}

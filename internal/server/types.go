package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Reading is one vitals sample from the chair. The timestamp is assigned by
// the server at ingestion and is never taken from the producer.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	HeartRate   float64   `json:"heartRate"`
	Temperature float64   `json:"temperature"`
	SugarLevel  float64   `json:"sugarLevel"`
}

// ReadingRow is a persisted Reading together with its store-assigned id.
type ReadingRow struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	HeartRate   float64   `json:"heartRate"`
	Temperature float64   `json:"temperature"`
	SugarLevel  float64   `json:"sugarLevel"`
}

// ErrMalformedPayload marks a body that cannot be parsed as a JSON object at
// all. Missing or invalid fields inside an object are coerced, not rejected.
var ErrMalformedPayload = errors.New("payload must be a JSON object")

// DecodeVitals parses an ingest payload. Any field that is missing, null or
// not numeric coerces to 0; numeric strings are accepted; there is no range
// validation. The returned Reading carries no timestamp.
func DecodeVitals(raw []byte) (Reading, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload == nil {
		return Reading{}, ErrMalformedPayload
	}

	return Reading{
		HeartRate:   numberOrZero(payload["heartRate"]),
		Temperature: numberOrZero(payload["temperature"]),
		SugarLevel:  numberOrZero(payload["sugarLevel"]),
	}, nil
}

func numberOrZero(value any) float64 {
	switch typed := value.(type) {
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseFloat(typed, 64)
		if err != nil {
			return 0
		}
		return parsed
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	default:
		return 0
	}
}

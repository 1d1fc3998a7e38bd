package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"
)

type vitalsPayload struct {
	HeartRate   float64 `json:"heartRate"`
	Temperature float64 `json:"temperature"`
	SugarLevel  float64 `json:"sugarLevel"`
}

type simulator struct {
	heartRate   float64
	temperature float64
	sugarLevel  float64
}

func main() {
	var targetURL string
	var interval time.Duration
	var jitter time.Duration
	var timeout time.Duration
	var count int
	var seed int64

	flag.StringVar(&targetURL, "url", "http://localhost:3000/data", "ingest endpoint URL")
	flag.DurationVar(&interval, "interval", 2*time.Second, "base delay between emitted readings")
	flag.DurationVar(&jitter, "jitter", 500*time.Millisecond, "max random delay added to each interval")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP request timeout")
	flag.IntVar(&count, "count", 0, "number of readings to emit (0 = infinite)")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 = use current time)")
	flag.Parse()

	if interval <= 0 {
		log.Fatal("interval must be > 0")
	}
	if jitter < 0 {
		log.Fatal("jitter must be >= 0")
	}
	if timeout <= 0 {
		log.Fatal("timeout must be > 0")
	}
	if count < 0 {
		log.Fatal("count must be >= 0")
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	log.Printf("simulator started seed=%d target=%s interval=%s", seed, targetURL, interval)

	client := &http.Client{Timeout: timeout}
	model := simulator{
		heartRate:   72.0,
		temperature: 36.6,
		sugarLevel:  5.4,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	emitted := 0
	for {
		if count > 0 && emitted >= count {
			log.Printf("simulation complete (%d readings sent)", emitted)
			return
		}

		payload := model.next(rng)
		if err := postVitals(ctx, client, targetURL, payload); err != nil {
			log.Printf("send failed: %v", err)
		} else {
			emitted++
			log.Printf(
				"sent #%d heartRate=%.0f temp=%.1f sugar=%.1f",
				emitted,
				payload.HeartRate,
				payload.Temperature,
				payload.SugarLevel,
			)
		}

		delay := interval
		if jitter > 0 {
			delay += time.Duration(rng.Int63n(int64(jitter) + 1))
		}

		select {
		case <-ctx.Done():
			log.Printf("simulation stopped")
			return
		case <-time.After(delay):
		}
	}
}

func (sim *simulator) next(rng *rand.Rand) vitalsPayload {
	sim.heartRate = clamp(sim.heartRate+rng.NormFloat64()*1.5, 45.0, 160.0)
	sim.temperature = clamp(sim.temperature+rng.NormFloat64()*0.05, 35.0, 39.5)
	sim.sugarLevel = clamp(sim.sugarLevel+rng.NormFloat64()*0.1, 3.0, 12.0)

	heartRate := sim.heartRate

	// Occasional spikes mimic the user standing up or briefly exerting.
	if rng.Float64() < 0.04 {
		heartRate = clamp(heartRate+rng.Float64()*25.0+10.0, 45.0, 180.0)
	}

	return vitalsPayload{
		HeartRate:   round1(heartRate),
		Temperature: round1(sim.temperature),
		SugarLevel:  round1(sim.sugarLevel),
	}
}

func postVitals(ctx context.Context, client *http.Client, targetURL string, payload vitalsPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusMultipleChoices {
		responseBody, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("status %d: %s", response.StatusCode, string(responseBody))
	}

	return nil
}

func clamp(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round1(value float64) float64 {
	return float64(int(value*10+0.5)) / 10
}

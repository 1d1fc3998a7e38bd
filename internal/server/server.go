package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// reportLimit bounds the /reports history query.
const reportLimit = 50

// appendTimeout bounds a single persistence attempt. The broadcast has
// already happened by the time Append runs, so a slow store only delays the
// producer's response, never the fanout.
const appendTimeout = 5 * time.Second

type API struct {
	store     Store
	latest    *LatestCell
	hub       *Hub
	limiter   *rateLimiter
	watchdog  *Watchdog
	logger    *zap.Logger
	staticDir string
}

type APIOption func(*API)

// WithRateLimit applies a fixed-window limit to POST /data per client.
func WithRateLimit(limit int, window time.Duration, trustProxyHeaders bool) APIOption {
	return func(api *API) {
		api.limiter = newRateLimiter(limit, window, trustProxyHeaders)
	}
}

// WithWatchdog wires a device liveness monitor into the ingest path.
func WithWatchdog(watchdog *Watchdog) APIOption {
	return func(api *API) {
		api.watchdog = watchdog
	}
}

// WithStaticDir serves the dashboard files from dir behind the API routes.
func WithStaticDir(dir string) APIOption {
	return func(api *API) {
		api.staticDir = dir
	}
}

func NewAPI(store Store, logger *zap.Logger, options ...APIOption) *API {
	if logger == nil {
		logger = zap.NewNop()
	}

	api := &API{
		store:  store,
		latest: NewLatestCell(Reading{Timestamp: time.Now().UTC()}),
		hub:    NewHub(logger.Named("hub")),
		logger: logger,
	}
	for _, option := range options {
		option(api)
	}
	return api
}

func (api *API) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", api.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", api.handleReady).Methods(http.MethodGet)
	router.HandleFunc("/data", api.handleIngest).Methods(http.MethodPost)
	router.HandleFunc("/data", api.handleLatest).Methods(http.MethodGet)
	router.HandleFunc("/reports", api.handleReports).Methods(http.MethodGet)
	router.HandleFunc("/ws", api.handleStream).Methods(http.MethodGet)
	if api.staticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(api.staticDir)))
	}
	return router
}

// Ingest runs the pipeline for one decoded reading: stamp, publish to the
// latest cell, fan out, then persist. The returned id is 0 when persistence
// failed; the error reports that failure without undoing the publish or the
// broadcast.
func (api *API) Ingest(ctx context.Context, vitals Reading) (Reading, int64, error) {
	reading := Reading{
		Timestamp:   time.Now().UTC(),
		HeartRate:   vitals.HeartRate,
		Temperature: vitals.Temperature,
		SugarLevel:  vitals.SugarLevel,
	}

	api.latest.Set(reading)
	api.hub.Broadcast(reading)
	if api.watchdog != nil {
		api.watchdog.MarkSeen(reading.Timestamp)
	}

	appendCtx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()

	id, err := api.store.Append(appendCtx, reading)
	if err != nil {
		api.logger.Error("persist reading", zap.Error(err))
		return reading, 0, err
	}
	return reading, id, nil
}

func (api *API) handleIngest(response http.ResponseWriter, request *http.Request) {
	if api.limiter != nil {
		identity := api.limiter.identity(request)
		if !api.limiter.allow(identity, time.Now()) {
			api.logger.Debug("rate limited", zap.String("client", identity))
			writeError(response, http.StatusTooManyRequests, "too many requests")
			return
		}
	}

	request.Body = http.MaxBytesReader(response, request.Body, 1<<20)
	payload, err := io.ReadAll(request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(response, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(response, http.StatusBadRequest, "invalid request body")
		return
	}

	vitals, err := DecodeVitals(payload)
	if err != nil {
		writeError(response, http.StatusBadRequest, err.Error())
		return
	}

	reading, id, err := api.Ingest(request.Context(), vitals)
	if err != nil {
		// The reading is already live in the latest cell and on every
		// subscriber; only durability failed.
		writeJSON(response, http.StatusOK, map[string]any{
			"status":    "success",
			"data":      reading,
			"persisted": false,
		})
		return
	}

	writeJSON(response, http.StatusOK, map[string]any{
		"status":    "success",
		"data":      reading,
		"persisted": true,
		"id":        id,
	})
}

func (api *API) handleLatest(response http.ResponseWriter, request *http.Request) {
	writeJSON(response, http.StatusOK, api.latest.Get())
}

func (api *API) handleReports(response http.ResponseWriter, request *http.Request) {
	rows, err := api.store.RecentN(request.Context(), reportLimit)
	if err != nil {
		api.logger.Error("query reports", zap.Error(err))
		writeError(response, http.StatusInternalServerError, "failed to read reports")
		return
	}

	if rows == nil {
		rows = []ReadingRow{}
	}
	writeJSON(response, http.StatusOK, rows)
}

func (api *API) handleHealth(response http.ResponseWriter, request *http.Request) {
	body := map[string]any{
		"status":      "ok",
		"subscribers": api.hub.Count(),
	}
	if api.watchdog != nil {
		lastSeen, offline := api.watchdog.Status()
		if !lastSeen.IsZero() {
			body["lastSeen"] = lastSeen
		}
		body["deviceOnline"] = !offline
	}
	writeJSON(response, http.StatusOK, body)
}

func (api *API) handleReady(response http.ResponseWriter, request *http.Request) {
	if err := api.store.Ping(request.Context()); err != nil {
		writeError(response, http.StatusServiceUnavailable, "not ready")
		return
	}

	writeJSON(response, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func writeJSON(response http.ResponseWriter, statusCode int, payload any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(statusCode)
	_ = json.NewEncoder(response).Encode(payload)
}

func writeError(response http.ResponseWriter, statusCode int, message string) {
	writeJSON(response, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

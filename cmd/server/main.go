package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jimo910/Smart-Ergonomics-chair/internal/config"
	"github.com/jimo910/Smart-Ergonomics-chair/internal/server"
)

func main() {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	logConfig.DisableCaller = true
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatal("error building zap logger: ", err)
	}
	defer logger.Sync()

	var conf config.Config
	if err := envconfig.Process("CHAIR", &conf); err != nil {
		logger.Fatal("unable to build configuration", zap.Error(err))
	}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSetup()

	store, err := server.NewPostgresStore(setupCtx, conf.DatabaseURL(), conf.DBMaxConns)
	if err != nil {
		logger.Fatal("create postgres store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("connected to database",
		zap.String("host", conf.DBHost),
		zap.String("database", conf.DBName),
	)

	watchdog := server.NewWatchdog(conf.DeviceOfflineTimeout, conf.MonitorInterval, logger.Named("watchdog"))

	options := []server.APIOption{
		server.WithWatchdog(watchdog),
		server.WithRateLimit(conf.IngestRateLimit, conf.IngestRateWindow, conf.TrustProxyHeaders),
	}
	if conf.StaticDir != "" {
		if _, err := os.Stat(conf.StaticDir); err == nil {
			options = append(options, server.WithStaticDir(conf.StaticDir))
		} else {
			logger.Info("static dir not found, dashboard disabled", zap.String("dir", conf.StaticDir))
		}
	}

	api := server.NewAPI(store, logger.Named("api"), options...)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go watchdog.Run(runCtx)

	if conf.MQTTBroker != "" {
		source := server.NewMQTTSource(server.MQTTOptions{
			BrokerURL: conf.MQTTBroker,
			ClientID:  conf.MQTTClientID,
			Username:  conf.MQTTUsername,
			Password:  conf.MQTTPassword,
			Topic:     conf.MQTTTopic,
		}, api, logger.Named("mqtt"))
		if err := source.Start(); err != nil {
			logger.Fatal("start mqtt source", zap.Error(err))
		}
		defer source.Stop()
		logger.Info("mqtt ingest enabled",
			zap.String("broker", conf.MQTTBroker),
			zap.String("topic", conf.MQTTTopic),
		)
	} else {
		logger.Info("mqtt ingest disabled (set CHAIR_MQTT_BROKER to enable)")
	}

	handler := handlers.LoggingHandler(os.Stdout, withCORS(conf.CORSAllowOrigin, api.Handler()))

	httpServer := &http.Server{
		Addr:              ":" + conf.Port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("vitals service listening", zap.String("port", conf.Port))
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("http server", zap.Error(err))
	case sig := <-shutdown:
		logger.Info("shutting down", zap.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
		}
	}
}

func withCORS(allowedOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		response.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		response.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		response.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if request.Method == http.MethodOptions {
			response.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(response, request)
	})
}

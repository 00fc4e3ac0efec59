// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/calderahealth/intake/pkg/logging"
	"github.com/calderahealth/intake/services/interview/bank"
	"github.com/calderahealth/intake/services/interview/embeddings"
	"github.com/calderahealth/intake/services/interview/flow"
	"github.com/calderahealth/intake/services/interview/middleware"
	"github.com/calderahealth/intake/services/interview/routes"
	"github.com/calderahealth/intake/services/interview/store"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "intake-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("interview-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient parses WEAVIATE_SERVICE_URL and connects, or
// returns nil to run in lightweight mode (interview only, no answer
// indexing).
func newWeaviateClient() *weaviate.Client {
	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Sanitize: trim quotes and whitespace in case the container
	// runtime passes them literally.
	weaviateURL = strings.Trim(weaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running in lightweight mode (no answer indexing).")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running in lightweight mode.",
			"url", weaviateURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	return client
}

// openAIAPIKey resolves the embeddings API key from the environment or
// a mounted container secret. Local endpoints ignore the key, so a
// missing key is not fatal.
func openAIAPIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	if data, err := os.ReadFile("/run/secrets/openai_api_key"); err == nil {
		return strings.TrimSpace(string(data))
	}
	return "not-needed"
}

func main() {
	port := os.Getenv("INTERVIEW_PORT")
	if port == "" {
		port = "12230"
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("INTERVIEW_LOG_DIR"),
		Service: "interview-service",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	// --- Load the question bank ---
	bankPath := os.Getenv("QUESTION_BANK_PATH")
	if bankPath == "" {
		bankPath = "/app/config/questions.json"
	}
	questionBank, err := bank.LoadFile(bankPath)
	if err != nil {
		log.Fatalf("FATAL: could not load the question bank from %s: %v", bankPath, err)
	}
	slog.Info("loaded question bank", "path", bankPath, "questions", questionBank.Len())

	watcher, err := bank.WatchFile(bankPath, slog.Default())
	if err != nil {
		slog.Warn("could not watch the question bank file for changes", "error", err)
	} else {
		defer watcher.Close()
	}

	// --- Open the session stores ---
	dataDir := os.Getenv("INTERVIEW_DATA_DIR")
	if dataDir == "" {
		dataDir = "/app/data/interview"
	}
	checkpoint, err := store.OpenBadgerStore(store.DefaultBadgerConfig(dataDir))
	if err != nil {
		log.Fatalf("FATAL: could not open the session checkpoint store: %v", err)
	}
	defer checkpoint.Close()

	cache := store.NewMemoryStore(store.MemoryConfig{})
	defer cache.Close()

	// --- Optional answer indexing ---
	var sink flow.AnswerSink = embeddings.NopIndexer{}
	var indexer *embeddings.Indexer
	if weaviateClient := newWeaviateClient(); weaviateClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := embeddings.EnsureSchema(ctx, weaviateClient)
		cancel()
		if err != nil {
			slog.Error("could not ensure the answer schema; disabling answer indexing", "error", err)
		} else {
			provider := embeddings.NewOpenAIProvider(embeddings.OpenAIProviderConfig{
				APIKey:  openAIAPIKey(),
				BaseURL: os.Getenv("EMBEDDINGS_BASE_URL"),
				Model:   os.Getenv("EMBEDDING_MODEL_NAME"),
			})
			indexer = embeddings.NewIndexer(embeddings.IndexerConfig{
				Client:   weaviateClient,
				Provider: provider,
			})
			defer indexer.Close()
			sink = indexer
		}
	}

	// --- Wire the interview engine ---
	controller, err := flow.NewController(flow.ControllerConfig{
		Bank:              questionBank,
		Cache:             cache,
		Checkpoint:        checkpoint,
		Sink:              sink,
		CompletionMessage: os.Getenv("COMPLETION_MESSAGE"),
	})
	if err != nil {
		log.Fatalf("FATAL: could not create the interview controller: %v", err)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("interview-service"))
	routes.SetupRoutes(router, controller, middleware.NopAuthProvider{})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Println("Starting the interview server on port ", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Block until a termination signal, then drain in-flight requests
	// before the deferred store closes run.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down the interview server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown of the interview server", "error", err)
	}
}

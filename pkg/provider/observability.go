package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityManager wires tracing and the metrics endpoint for one
// process. Components receive the tracer and WorkflowMetrics from here.
type ObservabilityManager struct {
	config         ObservabilityConfig
	registry       *prometheus.Registry
	metrics        *WorkflowMetrics
	tracerProvider *sdktrace.TracerProvider
	metricsServer  *http.Server
	shutdownOnce   sync.Once
}

// NewObservabilityManager creates a manager with its own metrics
// registry. Nothing listens or exports until Initialize is called.
func NewObservabilityManager(config ObservabilityConfig) *ObservabilityManager {
	registry := prometheus.NewRegistry()
	return &ObservabilityManager{
		config:   config,
		registry: registry,
		metrics:  NewWorkflowMetrics(registry),
	}
}

// Metrics returns the process-wide workflow metrics.
func (o *ObservabilityManager) Metrics() *WorkflowMetrics {
	return o.metrics
}

// Initialize sets up tracing and the metrics server per configuration.
func (o *ObservabilityManager) Initialize(ctx context.Context) error {
	if o.config.EnableTracing {
		if err := o.initializeTracing(ctx); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		slog.Info("tracing initialized", "service_name", o.config.ServiceName)
	}

	if o.config.MetricsPort > 0 {
		o.startMetricsServer()
		slog.Info("metrics server started", "port", o.config.MetricsPort)
	}

	return nil
}

func (o *ObservabilityManager) initializeTracing(ctx context.Context) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(o.config.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	o.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(o.tracerProvider)

	return nil
}

// Tracer returns a tracer for the given component name.
func (o *ObservabilityManager) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func (o *ObservabilityManager) startMetricsServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{}))

	o.metricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", o.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "port", o.config.MetricsPort)
		if err := o.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown flushes traces and stops the metrics server.
func (o *ObservabilityManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	o.shutdownOnce.Do(func() {
		if o.metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("metrics server shutdown: %w", err)
			}
		}

		if o.tracerProvider != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := o.tracerProvider.Shutdown(shutdownCtx); err != nil && shutdownErr == nil {
				shutdownErr = fmt.Errorf("tracer provider shutdown: %w", err)
			}
		}
	})

	return shutdownErr
}

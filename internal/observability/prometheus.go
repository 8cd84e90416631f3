package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ErrNoTextfile indicates a textfile write without a target path.
var ErrNoTextfile = errors.New("metrics textfile path is empty")

// Textfile collects OTel instruments into a private Prometheus registry so
// one-shot runs can leave their metrics in a node_exporter textfile.
type Textfile struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewTextfile creates a meter provider backed by a fresh Prometheus registry.
// Each call is independent to avoid collector conflicts.
func NewTextfile() (*Textfile, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &Textfile{
		registry: registry,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// Meter returns a meter whose instruments land in the textfile.
func (tf *Textfile) Meter() metric.Meter {
	return tf.provider.Meter(meterName)
}

// Registry exposes the underlying registry, e.g. for gathering in tests.
func (tf *Textfile) Registry() *prometheus.Registry {
	return tf.registry
}

// WriteFile writes all collected metrics to path in the Prometheus text
// format. The file is replaced atomically.
func (tf *Textfile) WriteFile(path string) error {
	if path == "" {
		return ErrNoTextfile
	}

	err := prometheus.WriteToTextfile(path, tf.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}

// Shutdown releases the meter provider.
func (tf *Textfile) Shutdown(ctx context.Context) error {
	err := tf.provider.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown textfile meter: %w", err)
	}

	return nil
}

// Package tracing builds the OpenTelemetry tracer provider the gateway's
// sessions record spans with.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ExporterStdout = "stdout"
	ExporterFile   = "file"
)

// Cfg is the tracing section of gatesvr.yaml.
type Cfg struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"serviceName"`
	// SampleRatio is the share of root spans kept, in [0,1].
	SampleRatio float64 `mapstructure:"sampleRatio"`
	Exporter    string  `mapstructure:"exporter"`
	// File receives one JSON span per line when Exporter is "file".
	File string `mapstructure:"file"`
}

func (c *Cfg) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return errors.New("sampleRatio must be in [0,1]")
	}
	switch c.Exporter {
	case ExporterStdout:
	case ExporterFile:
		if c.File == "" {
			return errors.New("file cannot be empty for the file exporter")
		}
	default:
		return fmt.Errorf("unknown exporter %q", c.Exporter)
	}
	return nil
}

// Provider owns the tracer provider and whatever its exporter writes to.
type Provider struct {
	tp  trace.TracerProvider
	sdk *sdktrace.TracerProvider
	out io.Closer
}

// New builds a provider from cfg. A disabled cfg yields a no-op provider
// unless opts are given, which tests use to attach a span recorder.
func New(cfg *Cfg, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if !cfg.Enabled && len(opts) == 0 {
		return &Provider{tp: noop.NewTracerProvider()}, nil
	}

	p := &Provider{}
	name := cfg.ServiceName
	if name == "" {
		name = "gatesvr"
	}
	ratio := cfg.SampleRatio
	if !cfg.Enabled {
		ratio = 1
	}
	all := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	if cfg.Enabled {
		var w io.Writer = os.Stdout
		if cfg.Exporter == ExporterFile {
			f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open trace file: %w", err)
			}
			w, p.out = f, f
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			p.closeOut()
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		all = append(all, sdktrace.WithBatcher(exp))
	}

	p.sdk = sdktrace.NewTracerProvider(append(all, opts...)...)
	p.tp = p.sdk
	return p, nil
}

func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Shutdown flushes buffered spans and closes the exporter output.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	if p.sdk != nil {
		err = p.sdk.Shutdown(ctx)
	}
	return errors.Join(err, p.closeOut())
}

func (p *Provider) closeOut() error {
	if p.out == nil {
		return nil
	}
	err := p.out.Close()
	p.out = nil
	return err
}

package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	logins             metric.Int64Counter
	sessionsIssued     metric.Int64Counter
	sessionsRotated    metric.Int64Counter
	sessionsRevoked    metric.Int64Counter
	sessionsEvicted    metric.Int64Counter
	invitationsCreated metric.Int64Counter
	invitationsClosed  metric.Int64Counter
	sweepRemoved       metric.Int64Counter
	authzDenied        metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "identity"
	}
	meter := provider.Meter(name)

	logins, err := meter.Int64Counter("identity_logins_total")
	if err != nil {
		return nil, err
	}
	sessionsIssued, err := meter.Int64Counter("identity_sessions_issued_total")
	if err != nil {
		return nil, err
	}
	sessionsRotated, err := meter.Int64Counter("identity_sessions_rotated_total")
	if err != nil {
		return nil, err
	}
	sessionsRevoked, err := meter.Int64Counter("identity_sessions_revoked_total")
	if err != nil {
		return nil, err
	}
	sessionsEvicted, err := meter.Int64Counter("identity_sessions_evicted_total")
	if err != nil {
		return nil, err
	}
	invitationsCreated, err := meter.Int64Counter("identity_invitations_created_total")
	if err != nil {
		return nil, err
	}
	invitationsClosed, err := meter.Int64Counter("identity_invitations_closed_total")
	if err != nil {
		return nil, err
	}
	sweepRemoved, err := meter.Int64Counter("identity_sweep_removed_total")
	if err != nil {
		return nil, err
	}
	authzDenied, err := meter.Int64Counter("identity_authz_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		logins:             logins,
		sessionsIssued:     sessionsIssued,
		sessionsRotated:    sessionsRotated,
		sessionsRevoked:    sessionsRevoked,
		sessionsEvicted:    sessionsEvicted,
		invitationsCreated: invitationsCreated,
		invitationsClosed:  invitationsClosed,
		sweepRemoved:       sweepRemoved,
		authzDenied:        authzDenied,
	}, nil
}

// RecordLogin increments login counts by result.
func (m *Metrics) RecordLogin(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordSessionIssued increments issued-session counts.
func (m *Metrics) RecordSessionIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsIssued.Add(ctx, 1)
}

// RecordSessionRotated increments rotation counts by result.
func (m *Metrics) RecordSessionRotated(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.sessionsRotated.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordSessionRevoked increments revocation counts.
func (m *Metrics) RecordSessionRevoked(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.sessionsRevoked.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

// RecordSessionEvicted increments cap-eviction counts.
func (m *Metrics) RecordSessionEvicted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsEvicted.Add(ctx, 1)
}

// RecordInvitationCreated increments created-invitation counts.
func (m *Metrics) RecordInvitationCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.invitationsCreated.Add(ctx, 1)
}

// RecordInvitationClosed increments terminal-transition counts by outcome.
func (m *Metrics) RecordInvitationClosed(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.invitationsClosed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSweep adds the number of entities reconciled by a sweep.
func (m *Metrics) RecordSweep(ctx context.Context, entity string, count int64) {
	if m == nil || count == 0 {
		return
	}
	m.sweepRemoved.Add(ctx, count, metric.WithAttributes(attribute.String("entity", entity)))
}

// RecordAuthzDenied increments denial counts by reason.
func (m *Metrics) RecordAuthzDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.authzDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

package service

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "driver-provisioning/backend/internal/provisioning/service"

var tracer = otel.Tracer(instrumentationName)

type instruments struct {
	operations metric.Int64Counter
}

// newInstruments registers the engine counters on the global MeterProvider.
// A registration failure leaves the counter nil and disables recording.
func newInstruments() *instruments {
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"driver_provisioning.operations",
		metric.WithDescription("Provision and deprovision calls by operation and outcome kind."),
	)
	if err != nil {
		log.Printf("provisioning: register counter: %v", err)
		return &instruments{}
	}
	return &instruments{operations: counter}
}

func (m *instruments) record(ctx context.Context, op string, err error) {
	if m == nil || m.operations == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "unknown"
		}
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

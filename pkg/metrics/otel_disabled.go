//go:build !otel
// +build !otel

package metrics

import "context"

// OTelTracer is the stand-in used when the module is built without
// -tags otel. Tunnel spans (establish, hydrate, qace.evaluate) become
// no-ops and the otel SDK is never linked.
type OTelTracer struct{}

// NewOTelTracer returns the no-op stand-in. The service name is ignored.
func NewOTelTracer(serviceName string) *OTelTracer {
	return &OTelTracer{}
}

// StartSpan returns the context unchanged and an ender that does nothing.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(err error) {}
}

// OTelEnabled reports whether the binary was built with -tags otel.
// Callers that require exported spans should check this before wiring
// an OTelTracer.
func OTelEnabled() bool {
	return false
}

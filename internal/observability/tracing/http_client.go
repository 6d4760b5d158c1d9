package tracing

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// WrapHTTPClient returns a copy of client whose requests run in a client
// span and forward the caller's trace headers.
func WrapHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	wrapped := *client
	base := wrapped.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped.Transport = &tracingTransport{base: base, tracer: otel.Tracer("schoolbill/http-client")}
	return &wrapped
}

type tracingTransport struct {
	base   http.RoundTripper
	tracer trace.Tracer
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(), "HTTP "+strings.ToUpper(req.Method), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "request error")
		return nil, err
	}
	span.SetAttributes(SafeAttributes(
		attribute.String("http.method", req.Method),
		attribute.Int("http.status_code", resp.StatusCode),
	)...)
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "upstream error")
	}
	return resp, nil
}

package llm

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/retrochat/internal/observability"
)

func TestInstrumentRecordsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWithRegistry(reg)

	inner := &fakeClient{text: "ok"}
	client := Instrument(inner, metrics)

	if _, err := client.Generate(context.Background(), NewGenerateRequest("hi")); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(metrics.LLMRequestCounter.WithLabelValues("fake", "fake-model", "success")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}

	inner.results = []error{NewError(KindServerError, "fake", "boom")}
	inner.calls.Store(0)
	if _, err := client.Generate(context.Background(), NewGenerateRequest("hi")); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(metrics.LLMRequestCounter.WithLabelValues("fake", "fake-model", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestInstrumentNilMetricsPassthrough(t *testing.T) {
	inner := &fakeClient{text: "ok"}
	if got := Instrument(inner, nil); got != Client(inner) {
		t.Error("nil metrics should return the client unchanged")
	}
}

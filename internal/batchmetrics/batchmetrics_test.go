package batchmetrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/schoolbill/internal/config"
	documentdomain "github.com/smallbiznis/schoolbill/internal/document/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePusher struct {
	mu     sync.Mutex
	pushes int
	err    error
}

func (p *capturePusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := gatherer.Gather(); err != nil {
		return err
	}
	p.pushes++
	return p.err
}

func sampleReport() documentdomain.IntegrityReport {
	started := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	return documentdomain.IntegrityReport{
		CheckedDocuments:  12,
		DanglingDocuments: []snowflake.ID{101},
		OrphansRemoved:    []string{"a.pdf", "b.pdf"},
		OrphansRetained:   1,
		StartedAt:         started,
		FinishedAt:        started.Add(1500 * time.Millisecond),
	}
}

func TestNewPusher(t *testing.T) {
	log := zap.NewNop()

	cases := []struct {
		name     string
		settings config.BatchMetricsConfig
		want     any
	}{
		{name: "disabled", settings: config.BatchMetricsConfig{}},
		{name: "missing endpoint", settings: config.BatchMetricsConfig{Exporter: ExporterPushgateway}},
		{name: "bad endpoint", settings: config.BatchMetricsConfig{Exporter: ExporterPushgateway, Endpoint: "not a url"}},
		{name: "unknown exporter", settings: config.BatchMetricsConfig{Exporter: "statsd", Endpoint: "http://localhost:9091"}},
		{name: "pushgateway", settings: config.BatchMetricsConfig{Exporter: ExporterPushgateway, Endpoint: "http://localhost:9091"}, want: &PushgatewayPusher{}},
		{name: "remote write", settings: config.BatchMetricsConfig{Exporter: ExporterRemoteWrite, Endpoint: "http://localhost:9090/api/v1/write"}, want: &RemoteWritePusher{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pusher := NewPusher(config.Config{AppName: "schoolbill", Environment: "test", BatchMetrics: tc.settings}, log)
			if tc.want == nil {
				assert.Nil(t, pusher)
				return
			}
			assert.IsType(t, tc.want, pusher)
		})
	}
}

func TestSweepRecorder_RecordSweep(t *testing.T) {
	pusher := &capturePusher{}
	rec := NewSweepRecorder(pusher, zap.NewNop())
	require.NotNil(t, rec)

	rec.RecordSweep(context.Background(), sampleReport())

	assert.Equal(t, 1, pusher.pushes)
	assert.Equal(t, float64(12), testutil.ToFloat64(rec.checked))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.dangling))
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.orphansRemoved))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.orphansRetained))
	assert.InDelta(t, 1.5, testutil.ToFloat64(rec.duration), 0.001)
	assert.Equal(t, float64(sampleReport().FinishedAt.Unix()), testutil.ToFloat64(rec.lastSuccess))
}

func TestSweepRecorder_PushErrorIsSwallowed(t *testing.T) {
	pusher := &capturePusher{err: errors.New("gateway down")}
	rec := NewSweepRecorder(pusher, zap.NewNop())

	rec.RecordFailure(context.Background())
	rec.RecordFailure(context.Background())

	assert.Equal(t, 2, pusher.pushes)
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.failures))
}

func TestSweepRecorder_NilIsSafe(t *testing.T) {
	assert.Nil(t, NewSweepRecorder(nil, zap.NewNop()))

	var rec *SweepRecorder
	rec.RecordSweep(context.Background(), sampleReport())
	rec.RecordFailure(context.Background())
}

func TestPushgatewayPusher_Push(t *testing.T) {
	var (
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	rec := NewSweepRecorder(NewPushgatewayPusher(srv.URL, "schoolbill", map[string]string{"environment": "test"}), zap.NewNop())
	rec.RecordSweep(context.Background(), sampleReport())

	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/schoolbill"), path)
	assert.Contains(t, path, "/environment/test")
	assert.NotEmpty(t, body)
}

func TestRemoteWritePusher_Push(t *testing.T) {
	var (
		headers http.Header
		written prompb.WriteRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		decoded, err := snappy.Decode(nil, raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := written.Unmarshal(decoded); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pusher := NewRemoteWritePusher(srv.URL, "secret", "schoolbill", map[string]string{"environment": "test", "empty": " "})
	pusher.now = func() time.Time { return time.UnixMilli(1700000000000) }

	rec := NewSweepRecorder(pusher, zap.NewNop())
	rec.RecordSweep(context.Background(), sampleReport())

	assert.Equal(t, "snappy", headers.Get("Content-Encoding"))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))

	values := map[string]float64{}
	for _, ts := range written.Timeseries {
		var name string
		for _, label := range ts.Labels {
			switch label.Name {
			case "__name__":
				name = label.Value
			case "empty":
				t.Errorf("blank label %q should be dropped", label.Name)
			}
		}
		require.Len(t, ts.Samples, 1)
		assert.Equal(t, int64(1700000000000), ts.Samples[0].Timestamp)
		values[name] = ts.Samples[0].Value
	}
	assert.Equal(t, float64(12), values["schoolbill_document_sweep_checked_documents"])
	assert.Equal(t, float64(2), values["schoolbill_document_sweep_orphans_removed"])
	assert.Contains(t, values, "schoolbill_document_sweep_failures_total")
}

func TestRemoteWritePusher_ReportsRejectedWrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "probe"})
	registry.MustRegister(gauge)

	err := NewRemoteWritePusher(srv.URL, "", "schoolbill", nil).Push(context.Background(), registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

// Package batchmetrics pushes the results of background jobs to Prometheus.
// Batch jobs finish between scrapes, so their gauges are pushed once per run
// instead of waiting for /metrics to be scraped.
package batchmetrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/schoolbill/internal/config"
	obstracing "github.com/smallbiznis/schoolbill/internal/observability/tracing"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	ExporterRemoteWrite = "prometheus_remote_write"
	ExporterPushgateway = "prometheus_pushgateway"

	pushTimeout = 5 * time.Second
)

type Pusher interface {
	Push(ctx context.Context, gatherer prometheus.Gatherer) error
}

// NewPusher returns nil when pushing is disabled or misconfigured. A bad
// exporter setting is logged and never stops the service from starting.
func NewPusher(cfg config.Config, log *zap.Logger) Pusher {
	settings := cfg.BatchMetrics
	if settings.Exporter == "" {
		return nil
	}
	if settings.Endpoint == "" {
		log.Warn("batch metrics disabled", zap.Error(errors.New("BATCH_METRICS_ENDPOINT is required")))
		return nil
	}
	if _, err := url.ParseRequestURI(settings.Endpoint); err != nil {
		log.Warn("batch metrics disabled", zap.Error(fmt.Errorf("invalid BATCH_METRICS_ENDPOINT: %w", err)))
		return nil
	}

	job := strings.TrimSpace(cfg.AppName)
	if job == "" {
		job = "schoolbill"
	}
	labels := map[string]string{"environment": strings.TrimSpace(cfg.Environment)}

	switch settings.Exporter {
	case ExporterRemoteWrite:
		return NewRemoteWritePusher(settings.Endpoint, settings.AuthToken, job, labels)
	case ExporterPushgateway:
		return NewPushgatewayPusher(settings.Endpoint, job, labels)
	default:
		log.Warn("batch metrics disabled", zap.String("exporter", settings.Exporter))
		return nil
	}
}

// RemoteWritePusher writes counters and gauges to a remote_write receiver.
type RemoteWritePusher struct {
	endpoint   string
	authToken  string
	labels     []prompb.Label
	httpClient *http.Client
	now        func() time.Time
}

func NewRemoteWritePusher(endpoint, authToken, job string, extra map[string]string) *RemoteWritePusher {
	labels := []prompb.Label{{Name: "job", Value: job}}
	for name, value := range extra {
		if strings.TrimSpace(value) == "" {
			continue
		}
		labels = append(labels, prompb.Label{Name: name, Value: value})
	}
	return &RemoteWritePusher{
		endpoint:   endpoint,
		authToken:  strings.TrimSpace(authToken),
		labels:     labels,
		httpClient: obstracing.WrapHTTPClient(&http.Client{Timeout: pushTimeout}),
		now:        time.Now,
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	series := toTimeSeries(families, p.labels, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	payload, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(snappy.Encode(nil, payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remote write returned %s", resp.Status)
	}
	return nil
}

// PushgatewayPusher replaces the job's group on a Pushgateway on every push.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
	client   *http.Client
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      job,
		grouping: grouping,
		client:   obstracing.WrapHTTPClient(&http.Client{Timeout: pushTimeout}),
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	pusher := push.New(p.endpoint, p.job).Gatherer(gatherer).Client(p.client)
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}

func toTimeSeries(families []*dto.MetricFamily, base []prompb.Label, timestampMs int64) []prompb.TimeSeries {
	series := make([]prompb.TimeSeries, 0, len(families))
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value, ok := sampleValue(family.GetType(), metric)
			if !ok {
				continue
			}
			labels := make([]prompb.Label, 0, len(base)+len(metric.GetLabel())+1)
			labels = append(labels, prompb.Label{Name: "__name__", Value: family.GetName()})
			labels = append(labels, base...)
			for _, label := range metric.GetLabel() {
				labels = append(labels, prompb.Label{Name: label.GetName(), Value: label.GetValue()})
			}
			sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

			series = append(series, prompb.TimeSeries{
				Labels:  labels,
				Samples: []prompb.Sample{{Value: value, Timestamp: timestampMs}},
			})
		}
	}
	return series
}

// sampleValue reads counters and gauges; histograms and summaries are not
// pushed.
func sampleValue(kind dto.MetricType, metric *dto.Metric) (float64, bool) {
	switch kind {
	case dto.MetricType_COUNTER:
		if c := metric.GetCounter(); c != nil {
			return c.GetValue(), true
		}
	case dto.MetricType_GAUGE:
		if g := metric.GetGauge(); g != nil {
			return g.GetValue(), true
		}
	}
	return 0, false
}

package actorhttp

import (
	"context"
	"encoding/json"
)

// metricsMiddleware implements surface.Middleware purely to record call
// counts/errors; it never rejects or rewrites a call.
type metricsMiddleware struct {
	m *metrics
}

func newMetricsMiddleware(m *metrics) *metricsMiddleware { return &metricsMiddleware{m: m} }

func (metricsMiddleware) OnRequest(context.Context, string, json.RawMessage) error { return nil }

func (mm *metricsMiddleware) OnResponse(_ context.Context, path string, _ any) error {
	mm.m.observeCall(path, nil)
	return nil
}

func (mm *metricsMiddleware) OnError(_ context.Context, path string, err error) error {
	mm.m.observeCall(path, err)
	return nil
}

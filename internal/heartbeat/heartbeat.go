// Package heartbeat pings an external uptime monitor on a fixed interval.
package heartbeat

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Heartbeat struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger
}

func New(url string, interval time.Duration, logger *zap.Logger) *Heartbeat {
	return &Heartbeat{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Run pings the monitor until ctx is cancelled. A missed ping is logged and
// the loop keeps going; the monitor's whole point is noticing silence.
func (h *Heartbeat) Run(ctx context.Context) {
	if h.url == "" {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.ping(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.ping(ctx)
		}
	}
}

func (h *Heartbeat) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		h.logger.Warn("Bad uptime monitor URL", zap.Error(err))
		return
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("Uptime ping failed", zap.Error(err))
		return
	}
	resp.Body.Close()
}

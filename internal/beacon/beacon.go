// Package beacon posts unload signals without waiting for the answer.
package beacon

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// same ceiling browsers apply to a single beacon payload
	MaxBodyBytes = 64 << 10

	defaultTimeout  = 3 * time.Second
	defaultInFlight = 16
)

// HTTPBeacon queues a POST and returns immediately. Nobody reads the
// response and failures are not retried.
type HTTPBeacon struct {
	client  *http.Client
	logger  *zap.Logger
	timeout time.Duration
	slots   chan struct{}
	wg      sync.WaitGroup
}

func New(client *http.Client, logger *zap.Logger) *HTTPBeacon {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBeacon{
		client:  client,
		logger:  logger,
		timeout: defaultTimeout,
		slots:   make(chan struct{}, defaultInFlight),
	}
}

// Send reports whether the beacon was queued. Oversized bodies and a full
// queue are refused.
func (b *HTTPBeacon) Send(url, contentType string, body []byte) bool {
	if len(body) > MaxBodyBytes {
		return false
	}
	select {
	case b.slots <- struct{}{}:
	default:
		return false
	}

	payload := bytes.Clone(body)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.slots }()
		b.post(url, contentType, payload)
	}()
	return true
}

func (b *HTTPBeacon) post(url, contentType string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		b.logger.Debug("Beacon not sent", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Debug("Beacon not delivered", zap.String("url", url), zap.Error(err))
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// Wait blocks until queued beacons finished or ctx is done.
func (b *HTTPBeacon) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atlasbio/meridian/internal/cache"
	"github.com/atlasbio/meridian/internal/logger"
)

// httpJSON is the shared transport for all source clients: JSON over HTTP
// with a per-call timeout and cached raw bodies.
type httpJSON struct {
	log      *logger.Logger
	client   *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
}

func newHTTPJSON(log *logger.Logger, c cache.Cache, timeout, cacheTTL time.Duration) *httpJSON {
	return &httpJSON{
		log:      log,
		client:   &http.Client{},
		cache:    c,
		cacheTTL: cacheTTL,
		timeout:  timeout,
	}
}

func (h *httpJSON) getJSON(ctx context.Context, key, url string, out interface{}) error {
	return h.do(ctx, key, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, out)
}

func (h *httpJSON) postJSON(ctx context.Context, key, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return h.do(ctx, key, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

func (h *httpJSON) do(ctx context.Context, key string, build func(ctx context.Context) (*http.Request, error), out interface{}) error {
	if raw, ok := h.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(raw, out); err == nil {
			return nil
		}
		// Corrupt cache entry: fall through and re-fetch.
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := build(callCtx)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Host, err)
	}

	h.cache.Set(ctx, key, raw, h.cacheTTL)
	return nil
}

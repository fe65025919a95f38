package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 8 << 20

// HTTPResult is a fully read HTTP response.
type HTTPResult struct {
	StatusCode int
	Body       []byte
}

// PostJSON sends body to url and retries transport errors and 5xx responses
// up to cfg.MaxRetries times with linear backoff. The request is rebuilt on
// every attempt so the body is never consumed twice.
func PostJSON(ctx context.Context, client *http.Client, cfg ProviderConfig, provider, url string, headers map[string]string, body []byte) (*HTTPResult, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewProviderError(provider, "CANCELLED", "request cancelled", 0, false, ctx.Err())
			case <-time.After(cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, NewProviderError(provider, "REQUEST_ERROR", "failed to create request", 0, false, err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if err != nil {
			return nil, NewProviderError(provider, "READ_ERROR", "failed to read response", resp.StatusCode, false, err)
		}
		if resp.StatusCode >= 500 && attempt < cfg.MaxRetries {
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			continue
		}
		return &HTTPResult{StatusCode: resp.StatusCode, Body: data}, nil
	}
	return nil, NewProviderError(provider, "HTTP_ERROR", "HTTP request failed", 0, true, lastErr)
}

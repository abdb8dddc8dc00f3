package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mtm-hub/src/logger"
	"mtm-hub/src/models"
)

const defaultUserAgent = "mtm-hub/1.0"

// maxBodyBytes bounds a terminal response; MTM payloads are a few hundred bytes.
const maxBodyBytes = 1 << 20

// -----------------------------------------------------------------------------

type HTTPManager struct {
	Config    *models.MConfig
	Client    *http.Client
	Logger    *logger.Logger
	UserAgent string
	// Backoff is the base retry delay; attempt n waits n*n*Backoff.
	Backoff time.Duration
}

// -----------------------------------------------------------------------------

func NewHTTPManager(cfg *models.MConfig, log *logger.Logger) *HTTPManager {
	ua := cfg.Network.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTTPManager{
		Config:    cfg,
		Logger:    log,
		UserAgent: ua,
		Backoff:   time.Second,
		Client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: time.Duration(cfg.Network.RequestTimeout) * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries. Only the body of a 2xx response is
// returned.
func (nm *HTTPManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i*i) * nm.Backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := nm.do(ctx, finalURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		if maxRetries > 0 {
			nm.Logger.Debug("Request %s failed (attempt %d/%d): %v", finalURL, i+1, maxRetries+1, err)
		}
	}

	if maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// -----------------------------------------------------------------------------

func (nm *HTTPManager) do(ctx context.Context, finalURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", nm.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := nm.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}
	return body, nil
}

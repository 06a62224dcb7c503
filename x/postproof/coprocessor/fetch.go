package coprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const maxRedirects = 10

var (
	ErrFetchStatus   = errors.New("unexpected content status")
	ErrContentTooBig = errors.New("content exceeds size limit")
)

// newFetchClient follows redirects only to allowed URLs.
func newFetchClient(cfg Config) *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return cfg.checkURL(req.URL)
		},
	}
}

// fetch downloads the post content, paced by the shared limiter and capped
// at MaxContentBytes.
func (c *Coprocessor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrURLNotAllowed, err)
	}
	if err := c.cfg.checkURL(u); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrFetchStatus, resp.StatusCode)
	}
	if resp.ContentLength > c.cfg.MaxContentBytes {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrContentTooBig, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxContentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxContentBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrContentTooBig, c.cfg.MaxContentBytes)
	}
	return body, nil
}

func fetchFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrURLNotAllowed):
		return "not_allowed"
	case errors.Is(err, ErrContentTooBig):
		return "too_big"
	case errors.Is(err, ErrFetchStatus):
		return "status"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}

package pubcid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const pixelTimeout = 10 * time.Second

// Firer sends a fire-and-forget image request.
type Firer interface {
	Fire(ctx context.Context, url string)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFirer issues the pixel GET on its own goroutine, detached from the
// caller's cancellation. Failures are only logged.
type HTTPFirer struct {
	client HTTPDoer
	l      *slog.Logger
}

var _ Firer = (*HTTPFirer)(nil)

func NewHTTPFirer(client HTTPDoer, l *slog.Logger) *HTTPFirer {
	if client == nil {
		client = &http.Client{Timeout: pixelTimeout}
	}
	if l == nil {
		l = slog.Default()
	}
	return &HTTPFirer{client: client, l: l}
}

func (f *HTTPFirer) Fire(ctx context.Context, target string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			f.l.Debug("failed to build pixel request", "url", target, "error", err)
			return
		}
		req.Header.Set("Accept", "image/*")
		res, err := f.client.Do(req)
		if err != nil {
			f.l.Debug("pixel request failed", "url", target, "error", err)
			return
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
		_ = res.Body.Close()
	}()
}

// PixelURL sets the id query parameter of template to "pubcid:<id>".
func PixelURL(template, id string) (string, error) {
	u, err := url.Parse(template)
	if err != nil {
		return "", fmt.Errorf("pubcid: error parsing pixel url: %w", err)
	}
	q := u.Query()
	q.Set("id", "pubcid:"+id)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pixel returns the callback firing the pixel for id, or nil without a usable template.
func (m *Manager) pixel(template, id string) Callback {
	if template == "" || m.firer == nil {
		return nil
	}
	target, err := PixelURL(template, id)
	if err != nil {
		m.l.Warn("ignoring pixel url", "url", template, "error", err)
		return nil
	}
	return func(ctx context.Context, _ func(string)) {
		m.firer.Fire(ctx, target)
	}
}

package sharedid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"
)

const maxResponseBytes = 1 << 16

var ErrUnexpectedStatus = errors.New("sharedid: unexpected status")

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTransport sends credentialed GETs: cookies the peer sets are kept in a
// public-suffix aware jar and replayed on later calls.
type HTTPTransport struct {
	client HTTPDoer
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport wraps client. A nil client gets a default client with its own jar.
func NewHTTPTransport(client HTTPDoer) *HTTPTransport {
	if client == nil {
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		client = &http.Client{Jar: jar}
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("sharedid: error building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sharedid: error calling %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBytes))
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("sharedid: error reading response: %w", err)
	}
	return string(body), nil
}

package sharedid

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pudottapommin/pubcommonid/pkg/storage"
)

// Endpoint is the well-known sync URL.
const Endpoint = "https://id.sharedid.org/id"

// Sync outcomes reported to a Recorder.
const (
	OutcomeStored         = "stored"
	OutcomeOptedOut       = "opted_out"
	OutcomeNoID           = "no_id"
	OutcomeMalformed      = "malformed"
	OutcomeEmptyBody      = "empty_body"
	OutcomeTransportError = "transport_error"
)

type (
	// Transport performs one credentialed GET and returns the response body.
	Transport interface {
		Get(ctx context.Context, url string) (string, error)
	}

	Recorder interface {
		SyncOutcome(outcome string)
	}

	response struct {
		SharedID string `json:"sharedId"`
	}
)

// SyncClient fetches the secondary identifier and reconciles the Store with it.
type SyncClient struct {
	transport Transport
	store     *Store
	endpoint  string
	rec       Recorder
	l         *slog.Logger
}

type SyncOption func(*SyncClient)

func WithEndpoint(url string) SyncOption {
	return func(c *SyncClient) {
		if url != "" {
			c.endpoint = url
		}
	}
}

func WithRecorder(rec Recorder) SyncOption {
	return func(c *SyncClient) { c.rec = rec }
}

func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(c *SyncClient) { c.l = l }
}

func NewSyncClient(transport Transport, store *Store, opts ...SyncOption) *SyncClient {
	c := &SyncClient{transport: transport, store: store, endpoint: Endpoint, l: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Sync issues a single request. With a non-empty body the record is stored or,
// for the opt-out value, cleared, and done is called with primaryID so the host
// can decode again. Transport errors and empty bodies end the sync silently.
func (c *SyncClient) Sync(ctx context.Context, cfg storage.Config, primaryID string, done func(id string)) {
	body, err := c.transport.Get(ctx, c.endpoint)
	if err != nil {
		c.l.Warn("shared id sync failed", "endpoint", c.endpoint, "error", err)
		c.record(OutcomeTransportError)
		return
	}
	if body == "" {
		c.record(OutcomeEmptyBody)
		return
	}

	c.record(c.apply(ctx, cfg, body))
	if done != nil {
		done(primaryID)
	}
}

func (c *SyncClient) apply(ctx context.Context, cfg storage.Config, body string) string {
	var res response
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		c.l.Error("failed to parse shared id response", "error", err)
		return OutcomeMalformed
	}
	switch res.SharedID {
	case "":
		return OutcomeNoID
	case OptOut:
		c.store.Clear(ctx, cfg)
		return OutcomeOptedOut
	}
	c.store.Store(ctx, cfg, res.SharedID)
	return OutcomeStored
}

func (c *SyncClient) record(outcome string) {
	if c.rec != nil {
		c.rec.SyncOutcome(outcome)
	}
}

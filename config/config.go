package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/pudottapommin/pubcommonid/pkg/cookiedomain"
	"github.com/pudottapommin/pubcommonid/pkg/pubcid"
	"github.com/pudottapommin/pubcommonid/pkg/sharedid"
	"github.com/pudottapommin/pubcommonid/pkg/storage"
)

type (
	Config struct {
		IsProd   bool     `env:"PUBCID_PROD" envDefault:"false"`
		Server   Server   `envPrefix:"PUBCID_SERVER_"`
		KV       KV       `envPrefix:"PUBCID_KV_"`
		Identity Identity `envPrefix:"PUBCID_ID_"`
		Auth     Auth     `envPrefix:"PUBCID_METRICS_AUTH_"`
	}

	Server struct {
		Host              string        `env:"HOST" envDefault:"localhost:8080"`
		CookieHost        string        `env:"COOKIE_HOST" envDefault:"localhost"`
		CookieSecure      bool          `env:"COOKIE_SECURE" envDefault:"false"`
		DomainPolicy      string        `env:"DOMAIN_POLICY" envDefault:"broadest"`
		ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	}

	KV struct {
		Driver    string        `env:"DRIVER" envDefault:"memory"`
		Addr      string        `env:"ADDR" envDefault:"localhost:6379"`
		Prefix    string        `env:"PREFIX" envDefault:"pubcid:"`
		SealKey   string        `env:"SEAL_KEY"`
		Retention time.Duration `env:"RETENTION" envDefault:"168h"`
	}

	Identity struct {
		StorageType           string `env:"STORAGE_TYPE" envDefault:"cookie"`
		StorageName           string `env:"STORAGE_NAME" envDefault:"_pubcid"`
		ExpirationDays        int    `env:"EXPIRATION_DAYS" envDefault:"30"`
		PrimaryExpirationDays int    `env:"PRIMARY_EXPIRATION_DAYS" envDefault:"365"`
		Create                bool   `env:"CREATE" envDefault:"true"`
		Extend                bool   `env:"EXTEND" envDefault:"false"`
		EnableSharedID        bool   `env:"SHARED_ID" envDefault:"false"`
		PixelURL              string `env:"PIXEL_URL"`
		SyncEndpoint          string `env:"SYNC_ENDPOINT" envDefault:"https://id.sharedid.org/id"`
		DeviceAccess          bool   `env:"DEVICE_ACCESS" envDefault:"true"`
	}

	Auth struct {
		IsEnabled bool   `env:"ENABLED" envDefault:"false"`
		Username  string `env:"USERNAME" envDefault:"admin"`
		Password  string `env:"PASSWORD" envDefault:"admin"`
	}
)

const (
	DriverMemory = "memory"
	DriverValkey = "valkey"
	DriverRedis  = "redis"
)

func (c *Config) Load() error {
	if err := env.Parse(c); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := storage.ParseType(c.Identity.StorageType); err != nil {
		errs = append(errs, err)
	}
	if _, err := cookiedomain.ParsePolicy(c.Server.DomainPolicy); err != nil {
		errs = append(errs, err)
	}
	switch c.KV.Driver {
	case DriverMemory, DriverValkey, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("config: unknown kv driver %q", c.KV.Driver))
	}
	if c.Identity.StorageName == "" {
		errs = append(errs, errors.New("config: storage name is required"))
	}
	for name, days := range map[string]int{
		"expiration days":         c.Identity.ExpirationDays,
		"primary expiration days": c.Identity.PrimaryExpirationDays,
	} {
		if days < 1 || days > sharedid.MaxExpirationDays {
			errs = append(errs, fmt.Errorf("config: %s must be between 1 and %d, got %d", name, sharedid.MaxExpirationDays, days))
		}
	}
	if c.Identity.PixelURL != "" {
		if _, err := url.ParseRequestURI(c.Identity.PixelURL); err != nil {
			errs = append(errs, fmt.Errorf("config: invalid pixel url: %w", err))
		}
	}
	if _, err := c.SealKey(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SealKey decodes the optional KV encryption key; nil means values are stored in the clear.
func (c *Config) SealKey() ([]byte, error) {
	if c.KV.SealKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.KV.SealKey)
	if err != nil {
		return nil, fmt.Errorf("config: failed to decode kv seal key: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, fmt.Errorf("config: kv seal key must be 16, 24 or 32 bytes, got %d", len(key))
}

func (c *Config) DomainPolicy() cookiedomain.Policy {
	p, _ := cookiedomain.ParsePolicy(c.Server.DomainPolicy)
	return p
}

// Pubcid is the identifier configuration requests start from.
func (c *Config) Pubcid() pubcid.Config {
	cfg := pubcid.DefaultConfig()
	if t, err := storage.ParseType(c.Identity.StorageType); err == nil {
		cfg.Storage.Type = t
	}
	cfg.Storage.Name = c.Identity.StorageName
	cfg.Storage.ExpirationDays = c.Identity.ExpirationDays
	cfg.Params = pubcid.Params{
		Create:         c.Identity.Create,
		PixelURL:       c.Identity.PixelURL,
		Extend:         c.Identity.Extend,
		EnableSharedID: c.Identity.EnableSharedID,
	}
	return cfg
}

package pubcid

import (
	"encoding/json"
	"fmt"

	"github.com/pudottapommin/pubcommonid/pkg/storage"
)

const DefaultName = "_pubcid"

type (
	// Config is supplied fresh on every call and never mutated.
	Config struct {
		Storage storage.Config `json:"storage"`
		Params  Params         `json:"params"`
	}

	Params struct {
		Create         bool   `json:"create"`
		PixelURL       string `json:"pixelUrl,omitempty"`
		Extend         bool   `json:"extend"`
		EnableSharedID bool   `json:"enableSharedId"`
	}
)

// DefaultConfig writes cookies named _pubcid and creates identifiers when missing.
// Storage.ExpirationDays is left unset so the process-wide default applies.
func DefaultConfig() Config {
	return Config{
		Storage: storage.Config{Type: storage.TypeCookie, Name: DefaultName},
		Params:  Params{Create: true},
	}
}

// ParseConfig decodes b over DefaultConfig, so omitted fields keep their defaults.
func ParseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("pubcid: error decoding config: %w", err)
	}
	if cfg.Storage.Name == "" {
		cfg.Storage.Name = DefaultName
	}
	return cfg, nil
}

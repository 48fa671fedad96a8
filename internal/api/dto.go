package api

import (
	"github.com/pudottapommin/pubcommonid/pkg/pubcid"
)

type (
	IDResponseData struct {
		ID      string          `json:"id,omitempty"`
		Synced  bool            `json:"synced"`
		Decoded *pubcid.Decoded `json:"ids,omitempty"`
	}
	ExtendResponseData struct {
		ID    string `json:"id,omitempty"`
		Pixel bool   `json:"pixel"`
	}
	HealthResponseData struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
)

// Package boot provides runtime configuration and dependency wiring for the bridge.
package boot

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/omnibridge/omnibridge/internal/config"
)

// RuntimeConfig holds parsed runtime settings derived from config plus env overrides.
type RuntimeConfig struct {
	ServerAddr         string
	ConversationTTL    time.Duration
	SessionCacheTTL    time.Duration
	IntakeSessionTTL   time.Duration
	PipelineWorkers    int
	PipelineQueueSize  int
	GatewayTimeout     time.Duration
	DeskTimeout        time.Duration
	StoragePublicBase  string
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides
// (HTTP_ADDR overrides the listen address).
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if strings.TrimSpace(cfg.Storage.PublicBaseURL) == "" {
		return nil, errors.New("storage public_base_url is required")
	}

	ret := &RuntimeConfig{
		ServerAddr:        cfg.Server.Addr,
		ConversationTTL:   time.Duration(cfg.Bridge.ConversationTTLDays) * 24 * time.Hour,
		SessionCacheTTL:   time.Duration(cfg.Bridge.SessionCacheTTLDays) * 24 * time.Hour,
		IntakeSessionTTL:  time.Duration(cfg.Bridge.IntakeSessionTTLHours) * time.Hour,
		PipelineWorkers:   cfg.Bridge.Workers,
		PipelineQueueSize: cfg.Bridge.QueueSize,
		GatewayTimeout:    time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second,
		DeskTimeout:       time.Duration(cfg.Desk.TimeoutSeconds) * time.Second,
		StoragePublicBase: cfg.Storage.PublicBaseURL,
	}

	if ret.PipelineWorkers <= 0 {
		ret.PipelineWorkers = 4
	}
	if ret.PipelineQueueSize <= 0 {
		ret.PipelineQueueSize = 256
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	return ret, nil
}

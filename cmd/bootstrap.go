package cmd

import (
	"github.com/cmuxiao/deepchat/internal/bridge"
	"github.com/cmuxiao/deepchat/internal/config"
	"github.com/cmuxiao/deepchat/internal/llm"
	"go.uber.org/zap"
)

// newBridge builds the configured provider and a bridge in front of it.
func newBridge(cfg *config.Config, log *zap.Logger) (*bridge.Bridge, error) {
	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("provider ready",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Inference.Timeout),
	)
	return bridge.New(provider,
		bridge.WithModel(cfg.Model),
		bridge.WithTimeout(cfg.Inference.Timeout),
		bridge.WithLogger(log),
	), nil
}

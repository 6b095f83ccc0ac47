package svc

import (
	"fmt"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/ai"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/compress"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/session"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/tools"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/config"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
)

// ServiceContext wires the agent's stateful subsystems together. One
// instance is built at startup and shared by the HTTP handlers and CLI
// commands; none of the subsystems are package-level singletons.
type ServiceContext struct {
	Config *config.Config

	Sessions   *session.Store
	Registry   *tools.Registry
	Compressor *compress.Compressor
}

// NewServiceContext builds the service context from config. The AI
// provider is optional: when no API key is configured the compressor
// falls back to deterministic summaries instead of LLM ones.
func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	if err := c.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	store, err := session.NewStore(c.SessionsDir(), session.WithTTL(c.SessionTTL()))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	registry, err := tools.NewRegistry(c.RegistryDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open tool registry: %w", err)
	}

	var provider ai.Provider
	if c.AI.APIKey != "" {
		provider, err = ai.NewProvider(c.AI)
		if err != nil {
			return nil, fmt.Errorf("failed to build ai provider: %w", err)
		}
		logging.Infof("summarization provider: %s (%s)", provider.ID(), c.AI.Model)
	} else {
		logging.Warnf("no AI API key configured, using extractive summaries")
	}

	return &ServiceContext{
		Config:     c,
		Sessions:   store,
		Registry:   registry,
		Compressor: compress.New(c.Compression, provider),
	}, nil
}

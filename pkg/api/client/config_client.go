package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/types"
)

const configPath = "/api/config"

// ConfigClient manages stored configurations through the admin API.
type ConfigClient struct {
	client *Client
	logger log.Logger
}

// NewConfigClient creates a new config client.
func NewConfigClient(client *Client) *ConfigClient {
	return &ConfigClient{
		client: client,
		logger: client.logger.WithComponent("config-client"),
	}
}

func idQuery(id string) url.Values {
	return url.Values{"id": []string{id}}
}

// List returns all configurations, most recently saved first.
func (c *ConfigClient) List(ctx context.Context) ([]*types.Configuration, error) {
	var configs []*types.Configuration
	if err := c.client.doJSON(ctx, http.MethodGet, configPath, nil, nil, &configs); err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	return configs, nil
}

// Get returns the configuration with id.
func (c *ConfigClient) Get(ctx context.Context, id string) (*types.Configuration, error) {
	var cfg types.Configuration
	if err := c.client.doJSON(ctx, http.MethodGet, configPath, idQuery(id), nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to get config %s: %w", id, err)
	}
	return &cfg, nil
}

// Create stores a new configuration and returns it with its assigned id.
func (c *ConfigClient) Create(ctx context.Context, draft types.ConfigDraft) (*types.Configuration, error) {
	var cfg types.Configuration
	if err := c.client.doJSON(ctx, http.MethodPost, configPath, nil, draft, &cfg); err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	c.logger.Debug("Created config", log.Str("id", cfg.ID), log.Str("name", cfg.Name))
	return &cfg, nil
}

// Update replaces the configuration with id, creating it if absent.
func (c *ConfigClient) Update(ctx context.Context, id string, draft types.ConfigDraft) (*types.Configuration, error) {
	var cfg types.Configuration
	if err := c.client.doJSON(ctx, http.MethodPut, configPath, idQuery(id), draft, &cfg); err != nil {
		return nil, fmt.Errorf("failed to update config %s: %w", id, err)
	}
	return &cfg, nil
}

// Delete removes the configuration with id. Unknown ids succeed.
func (c *ConfigClient) Delete(ctx context.Context, id string) error {
	if err := c.client.doJSON(ctx, http.MethodDelete, configPath, idQuery(id), nil, &messageReply{}); err != nil {
		return fmt.Errorf("failed to delete config %s: %w", id, err)
	}
	return nil
}

// FindByName returns the configuration named name, or nil when there is
// none. Names are not unique; like the server's /sub lookup it picks the
// match that sorts first by ID in store key order, not the newest one.
func (c *ConfigClient) FindByName(ctx context.Context, name string) (*types.Configuration, error) {
	configs, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var found *types.Configuration
	for _, cfg := range configs {
		if cfg.Name != name {
			continue
		}
		if found == nil || cfg.ID < found.ID {
			found = cfg
		}
	}
	return found, nil
}

// Apply creates draft, or updates the existing configuration with the same
// name. It reports whether a new configuration was created.
func (c *ConfigClient) Apply(ctx context.Context, draft types.ConfigDraft) (*types.Configuration, bool, error) {
	if err := draft.Validate(); err != nil {
		return nil, false, err
	}
	existing, err := c.FindByName(ctx, draft.Name)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		cfg, err := c.Create(ctx, draft)
		return cfg, true, err
	}
	cfg, err := c.Update(ctx, existing.ID, draft)
	return cfg, false, err
}

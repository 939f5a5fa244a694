package repos

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/store"
	"github.com/rzbill/subrelay/pkg/types"
)

// ConfigRepo stores subscription configurations under config:{id}.
type ConfigRepo struct {
	base   *BaseRepo[types.Configuration]
	logger log.Logger
	now    func() time.Time

	// createMu serialises id allocation within this process.
	createMu sync.Mutex
}

type ConfigOption func(*ConfigRepo)

// WithClock overrides the clock used for LastSaved.
func WithClock(now func() time.Time) ConfigOption {
	return func(r *ConfigRepo) {
		r.now = now
	}
}

// WithConfigLogger sets the repo logger.
func WithConfigLogger(logger log.Logger) ConfigOption {
	return func(r *ConfigRepo) {
		r.logger = logger
	}
}

func NewConfigRepo(core store.Store, opts ...ConfigOption) *ConfigRepo {
	repo := &ConfigRepo{
		base:   NewBaseRepo[types.Configuration](core, store.ConfigPrefix),
		logger: log.GetDefaultLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}
	repo.logger = repo.logger.WithComponent("config-repo")
	return repo
}

// List returns all configurations, most recently saved first. Records with
// equal timestamps keep key order.
func (r *ConfigRepo) List(ctx context.Context) ([]*types.Configuration, error) {
	items, err := r.base.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastSavedTime().After(items[j].LastSavedTime())
	})
	return items, nil
}

// Get returns the configuration with the given id.
func (r *ConfigRepo) Get(ctx context.Context, id string) (*types.Configuration, error) {
	c, err := r.base.Get(ctx, store.MakeConfigKey(id))
	if store.IsNotFoundError(err) {
		return nil, types.NewNotFoundError("config", id)
	}
	return c, err
}

// Create validates draft, allocates the next numeric id and stores the
// record.
func (r *ConfigRepo) Create(ctx context.Context, draft types.ConfigDraft) (*types.Configuration, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	keys, err := r.base.Keys(ctx)
	if err != nil {
		return nil, err
	}
	id := strconv.FormatInt(store.MaxNumericID(keys)+1, 10)

	c := r.build(id, draft)
	if err := r.base.Put(ctx, store.MakeConfigKey(id), c); err != nil {
		return nil, err
	}

	r.logger.Info("Created configuration", log.Str("id", id), log.Str("name", c.Name))
	return c, nil
}

// Update validates draft and overwrites config:{id}. The id does not have
// to exist already.
func (r *ConfigRepo) Update(ctx context.Context, id string, draft types.ConfigDraft) (*types.Configuration, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	c := r.build(id, draft)
	if err := r.base.Put(ctx, store.MakeConfigKey(id), c); err != nil {
		return nil, err
	}

	r.logger.Info("Updated configuration", log.Str("id", id), log.Str("name", c.Name))
	return c, nil
}

// Delete removes the configuration. Unknown ids are not an error.
func (r *ConfigRepo) Delete(ctx context.Context, id string) error {
	if err := r.base.Delete(ctx, store.MakeConfigKey(id)); err != nil {
		return err
	}
	r.logger.Info("Deleted configuration", log.Str("id", id))
	return nil
}

// FindByName returns the first configuration in key order whose name is
// exactly name.
func (r *ConfigRepo) FindByName(ctx context.Context, name string) (*types.Configuration, error) {
	items, err := r.base.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range items {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, types.NewNotFoundError("config name", name)
}

func (r *ConfigRepo) build(id string, draft types.ConfigDraft) *types.Configuration {
	return &types.Configuration{
		ID:            id,
		Name:          draft.Name,
		BackendURL:    draft.BackendURL,
		SubscribeURLs: types.NormalizeSubscribeURLs(draft.SubscribeURLs),
		ProxyTag:      draft.ProxyTag,
		LastSaved:     types.FormatTimestamp(r.now()),
	}
}

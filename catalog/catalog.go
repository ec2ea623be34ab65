package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"repuestos-backoffice/cache"
	"repuestos-backoffice/database"
	"repuestos-backoffice/models"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("registro no encontrado")

// Cache keeps serialized reference lists. cache.Redis implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Catalog is the read side of products, clients and employees.
type Catalog struct {
	store database.Store
	cache Cache
	log   *zap.Logger
}

type Option func(*Catalog)

func WithCache(c Cache) Option {
	return func(cat *Catalog) { cat.cache = c }
}

func New(store database.Store, log *zap.Logger, opts ...Option) *Catalog {
	c := &Catalog{store: store, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := c.get(ctx, models.CollProducts, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Catalog) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var cl models.Client
	if err := c.get(ctx, models.CollClients, id, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *Catalog) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	var e models.Employee
	if err := c.get(ctx, models.CollEmployees, id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Catalog) get(ctx context.Context, coll, id string, out any) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: %s %q", ErrNotFound, coll, id)
	}
	snap, err := c.store.Get(ctx, database.Doc(coll, id))
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s %q", ErrNotFound, coll, id)
	}
	if err != nil {
		return err
	}
	return snap.Decode(out)
}

func (c *Catalog) ListClients(ctx context.Context) ([]models.Client, error) {
	return cachedList[models.Client](ctx, c, cache.KeyClients, models.CollClients)
}

func (c *Catalog) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	return cachedList[models.Employee](ctx, c, cache.KeyEmployees, models.CollEmployees)
}

// InvalidateReferenceLists drops the cached client and employee lists.
func (c *Catalog) InvalidateReferenceLists(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, cache.KeyClients, cache.KeyEmployees)
}

// cachedList reads a list from the cache, or from the store ordered by
// name. Cache failures only cost a store read.
func cachedList[T any](ctx context.Context, c *Catalog, key, coll string) ([]T, error) {
	if c.cache != nil {
		b, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			var out []T
			if err := json.Unmarshal(b, &out); err == nil {
				return out, nil
			}
			c.log.Warn("discarding unreadable cache entry", zap.String("key", key))
		case !errors.Is(err, cache.ErrMiss):
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	snaps, err := c.store.Query(ctx, database.Query{Collection: coll, OrderBy: "name"})
	if err != nil {
		return nil, err
	}
	out, err := decodeAll[T](snaps)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		b, err := json.Marshal(out)
		if err == nil {
			err = c.cache.Set(ctx, key, b)
		}
		if err != nil {
			c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func decodeAll[T any](snaps []database.Snapshot) ([]T, error) {
	out := make([]T, len(snaps))
	for i, s := range snaps {
		if err := s.Decode(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

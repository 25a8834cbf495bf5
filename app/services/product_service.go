package services

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmgilman/go/errors"
	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/cache"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
)

// Cache keys.
const KeyAll = "all"

// ItemKey is the cache key of a single product.
func ItemKey(id uint) string { return "item:" + strconv.FormatUint(uint64(id), 10) }

// Events published after a committed write. The payload is a ProductChange.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

const maxNameLength = 255

// ProductChange describes a committed write.
type ProductChange struct {
	Action  string         `json:"action"`
	Product models.Product `json:"product"`
	Actor   string         `json:"actor"`
	At      time.Time      `json:"at"`
}

// ProductStore is the persistence the service composes with the cache.
type ProductStore interface {
	Insert(ctx context.Context, p models.Product) (models.Product, error)
	FindByID(ctx context.Context, id uint) (models.Product, error)
	ListAll(ctx context.Context) ([]models.Product, error)
	FindByName(ctx context.Context, name string) (models.Product, error)
	Update(ctx context.Context, id uint, expected models.Version, fields models.ProductFields) (repositories.UpdateResult, error)
	Delete(ctx context.Context, id uint) error
}

// Publisher receives change events. *event.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, name string, payload interface{})
}

// ProductServiceOptions wires the collaborators of a ProductService.
type ProductServiceOptions struct {
	Cache  *cache.Cache
	Events Publisher     // optional
	TTL    time.Duration // defaults to five minutes
	Now    func() time.Time
}

// ProductService is the single entry point for catalogue reads and writes.
// Writes validate, commit to the store, and only then invalidate the
// affected cache keys and publish an event.
type ProductService struct {
	store  ProductStore
	cache  *cache.Cache
	events Publisher
	ttl    time.Duration
	now    func() time.Time
}

func NewProductService(store ProductStore, opts ProductServiceOptions) *ProductService {
	s := &ProductService{
		store:  store,
		cache:  opts.Cache,
		events: opts.Events,
		ttl:    opts.TTL,
		now:    opts.Now,
	}
	if s.cache == nil {
		s.cache = cache.New(cache.Options{})
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// List returns the summary of every product, from cache when fresh.
func (s *ProductService) List(ctx context.Context) ([]models.ProductSummary, error) {
	if v, ok := s.cache.Get(KeyAll); ok {
		if list, ok := v.([]models.ProductSummary); ok {
			return append([]models.ProductSummary(nil), list...), nil
		}
		s.cache.Invalidate(KeyAll)
	}

	stamp := s.cache.Stamp()
	products, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]models.ProductSummary, len(products))
	for i, p := range products {
		list[i] = p.Summary()
	}
	s.cache.SetIfUnchanged(stamp, KeyAll, append([]models.ProductSummary(nil), list...), s.ttl, cache.High)
	return list, nil
}

// Get returns one product, from cache when fresh. Absent products are never
// cached.
func (s *ProductService) Get(ctx context.Context, id uint) (models.Product, error) {
	key := ItemKey(id)
	if v, ok := s.cache.Get(key); ok {
		if p, ok := v.(models.Product); ok {
			return p.Clone(), nil
		}
		s.cache.Invalidate(key)
	}

	stamp := s.cache.Stamp()
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	s.cache.SetIfUnchanged(stamp, key, p.Clone(), s.ttl, cache.Normal)
	return p, nil
}

// Create validates input, rejects a name already in use and inserts it.
func (s *ProductService) Create(ctx context.Context, actor string, input models.Product) (models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateName(input.Name); err != nil {
		return models.Product{}, err
	}
	if err := validatePrice(input.Price); err != nil {
		return models.Product{}, err
	}

	if err := s.nameFree(ctx, input.Name, 0); err != nil {
		return models.Product{}, err
	}

	p, err := s.store.Insert(ctx, input)
	if err != nil {
		return models.Product{}, err
	}

	s.cache.Invalidate(KeyAll, ItemKey(p.ID))
	s.publish(ctx, EventProductCreated, models.ActionCreated, actor, p)
	logger.WithCtx(ctx).Info("product created", "id", p.ID, "actor", actor)
	return p, nil
}

// Update applies fields if expected is still the stored version. A stale
// version is reported as UpdateResult.Conflict with the current record and
// leaves both store and cache untouched.
func (s *ProductService) Update(ctx context.Context, actor string, id uint, expected models.Version, fields models.ProductFields) (repositories.UpdateResult, error) {
	if len(expected) == 0 {
		return repositories.UpdateResult{}, errors.WithContext(
			errors.New(errors.CodeInvalidInput, "a version is required to update a product"), "field", "version")
	}
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if err := validateName(name); err != nil {
			return repositories.UpdateResult{}, err
		}
		fields.Name = &name
	}
	if fields.Price != nil {
		if err := validatePrice(*fields.Price); err != nil {
			return repositories.UpdateResult{}, err
		}
	}

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return repositories.UpdateResult{}, err
	}
	if fields.Name != nil && models.NameKey(*fields.Name) != models.NameKey(current.Name) {
		if err := s.nameFree(ctx, *fields.Name, id); err != nil {
			return repositories.UpdateResult{}, err
		}
	}

	res, err := s.store.Update(ctx, id, expected, fields)
	if err != nil {
		return repositories.UpdateResult{}, err
	}
	if res.Conflict {
		metrics.VersionConflicts.Inc()
		logger.WithCtx(ctx).Info("product update rejected: stale version", "id", id, "actor", actor)
		return res, nil
	}

	s.cache.Invalidate(KeyAll, ItemKey(id))
	s.publish(ctx, EventProductUpdated, models.ActionUpdated, actor, res.Record)
	logger.WithCtx(ctx).Info("product updated", "id", id, "actor", actor)
	return res, nil
}

// Delete removes a product.
func (s *ProductService) Delete(ctx context.Context, actor string, id uint) error {
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(KeyAll, ItemKey(id))
	s.publish(ctx, EventProductDeleted, models.ActionDeleted, actor, current)
	logger.WithCtx(ctx).Info("product deleted", "id", id, "actor", actor)
	return nil
}

func (s *ProductService) publish(ctx context.Context, name, action, actor string, p models.Product) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, name, ProductChange{
		Action:  action,
		Product: p.Clone(),
		Actor:   actor,
		At:      s.now().UTC(),
	})
}

// nameFree rejects name when a product other than id already holds it. The
// error carries the holder's id so the caller can fetch it instead.
func (s *ProductService) nameFree(ctx context.Context, name string, id uint) error {
	existing, err := s.store.FindByName(ctx, name)
	switch {
	case repositories.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.ID == id:
		return nil
	}
	return repositories.NameInUseError(name, existing.ID)
}

func validateName(name string) error {
	switch {
	case name == "":
		return errors.WithContext(errors.New(errors.CodeInvalidInput, "name is required"), "field", "name")
	case utf8.RuneCountInString(name) > maxNameLength:
		return errors.WithContext(
			errors.Newf(errors.CodeInvalidInput, "name must be at most %d characters", maxNameLength), "field", "name")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return errors.WithContext(errors.New(errors.CodeInvalidInput, "price must not be negative"), "field", "price")
	case !price.Equal(price.Round(models.PriceScale)):
		return errors.WithContext(
			errors.Newf(errors.CodeInvalidInput, "price must have at most %d decimal places", models.PriceScale), "field", "price")
	}
	return nil
}

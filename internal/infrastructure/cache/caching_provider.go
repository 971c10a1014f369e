package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/domain/recipe"
	"github.com/fooder/fooder/internal/ports/outbound"
)

// Observer receives cache hit/miss/error events
type Observer interface {
	CacheOperation(operation, result string)
}

// CachingRecipeProvider decorates a RecipeProvider with a read-through cache.
// Only successful backend responses are cached; cache failures fall through to the backend.
type CachingRecipeProvider struct {
	next     outbound.RecipeProvider
	store    outbound.CacheRepository
	ttl      time.Duration
	observer Observer
	logger   *zap.Logger
}

var _ outbound.RecipeProvider = (*CachingRecipeProvider)(nil)

// NewCachingRecipeProvider wraps next. observer may be nil.
func NewCachingRecipeProvider(
	next outbound.RecipeProvider,
	store outbound.CacheRepository,
	ttl time.Duration,
	observer Observer,
	logger *zap.Logger,
) *CachingRecipeProvider {
	return &CachingRecipeProvider{
		next:     next,
		store:    store,
		ttl:      ttl,
		observer: observer,
		logger:   logger.Named("recipe-cache"),
	}
}

// SearchPrepared serves prepared-food searches from cache when possible
func (p *CachingRecipeProvider) SearchPrepared(ctx context.Context, q outbound.PreparedQuery) ([]recipe.Record, error) {
	key := fmt.Sprintf("recipes:prepared:%d:%s", q.Number, normalize(q.Phrases, "|"))

	var records []recipe.Record
	if p.lookup(ctx, "prepared", key, &records) {
		return records, nil
	}

	records, err := p.next.SearchPrepared(ctx, q)
	if err != nil {
		return nil, err
	}
	p.save(ctx, "prepared", key, records)
	return records, nil
}

// FindByIngredients serves ingredient searches from cache when possible
func (p *CachingRecipeProvider) FindByIngredients(ctx context.Context, q outbound.IngredientQuery) ([]recipe.Record, error) {
	key := fmt.Sprintf("recipes:ingredients:%d:%t:%s", q.Number, q.IgnorePantry, normalize(q.Ingredients, ","))

	var records []recipe.Record
	if p.lookup(ctx, "ingredients", key, &records) {
		return records, nil
	}

	records, err := p.next.FindByIngredients(ctx, q)
	if err != nil {
		return nil, err
	}
	p.save(ctx, "ingredients", key, records)
	return records, nil
}

// GetInformation serves recipe details from cache when possible
func (p *CachingRecipeProvider) GetInformation(ctx context.Context, id int64) (*recipe.Record, error) {
	key := "recipes:info:" + strconv.FormatInt(id, 10)

	var rec recipe.Record
	if p.lookup(ctx, "information", key, &rec) {
		return &rec, nil
	}

	fetched, err := p.next.GetInformation(ctx, id)
	if err != nil {
		return nil, err
	}
	if fetched != nil {
		p.save(ctx, "information", key, fetched)
	}
	return fetched, nil
}

func (p *CachingRecipeProvider) lookup(ctx context.Context, operation, key string, out interface{}) bool {
	data, err := p.store.Get(ctx, key)
	switch {
	case errors.Is(err, outbound.ErrCacheMiss):
		p.observe(operation, "miss")
		return false
	case err != nil:
		p.observe(operation, "error")
		p.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		p.observe(operation, "error")
		p.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = p.store.Delete(ctx, key)
		return false
	}
	p.observe(operation, "hit")
	return true
}

func (p *CachingRecipeProvider) save(ctx context.Context, operation, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("Cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := p.store.Set(ctx, key, data, p.ttl); err != nil {
		p.observe(operation+"_set", "error")
		p.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (p *CachingRecipeProvider) observe(operation, result string) {
	if p.observer != nil {
		p.observer.CacheOperation(operation, result)
	}
}

func normalize(terms []string, sep string) string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, strings.ToLower(strings.TrimSpace(t)))
	}
	return strings.Join(out, sep)
}

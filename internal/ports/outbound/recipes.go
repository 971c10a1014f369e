package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/fooder/fooder/internal/domain/recipe"
)

// PreparedQuery searches for recipes of composed dishes by phrase
type PreparedQuery struct {
	// Phrases are OR-combined as quoted phrases
	Phrases []string
	Number  int
}

// IngredientQuery searches for recipes maximising use of the given ingredients
type IngredientQuery struct {
	Ingredients  []string
	Number       int
	IgnorePantry bool
}

// RecipeProvider is the external recipe search backend
type RecipeProvider interface {
	// SearchPrepared returns full-detail records (ingredients and instructions attached)
	SearchPrepared(ctx context.Context, q PreparedQuery) ([]recipe.Record, error)

	// FindByIngredients returns summary records ranked by ingredient coverage
	FindByIngredients(ctx context.Context, q IngredientQuery) ([]recipe.Record, error)

	// GetInformation fetches the full record for one recipe id
	GetInformation(ctx context.Context, id int64) (*recipe.Record, error)
}

// ErrCacheMiss is returned by CacheRepository.Get for absent or expired keys
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// Package recipe provides the application layer for recipe lookup
// This implements the RecipeFinder use case defined in the inbound ports
package recipe

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fooder/fooder/internal/domain/food"
	"github.com/fooder/fooder/internal/domain/recipe"
	"github.com/fooder/fooder/internal/ports/inbound"
	"github.com/fooder/fooder/internal/ports/outbound"
	"github.com/fooder/fooder/pkg/errors"
)

// Merge orders
const (
	MergePreparedFirst    = "prepared_first"
	MergeIngredientsFirst = "ingredients_first"
)

const (
	defaultLimit             = 5
	defaultMaxLimit          = 20
	defaultDetailConcurrency = 4
)

var tracer = otel.Tracer("github.com/fooder/fooder/internal/application/recipe")

// Config tunes the router
type Config struct {
	APIKey            string
	DefaultLimit      int
	MaxLimit          int
	DetailConcurrency int
	MergeOrder        string
}

// Router implements inbound.RecipeFinder.
// Prepared dishes are searched by name; raw ingredients are searched by coverage.
type Router struct {
	provider outbound.RecipeProvider
	vocab    *food.Vocabulary
	cfg      Config
	logger   *zap.Logger
}

var _ inbound.RecipeFinder = (*Router)(nil)

// NewRouter creates a new recipe router. A missing API key is a permanent configuration error.
func NewRouter(provider outbound.RecipeProvider, vocab *food.Vocabulary, cfg Config, logger *zap.Logger) (*Router, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.NewConfigurationError("recipe API key is required (recipes.api_key or SPOONACULAR_API_KEY)")
	}
	if provider == nil {
		return nil, errors.NewConfigurationError("no recipe provider configured")
	}

	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = defaultMaxLimit
		if cfg.MaxLimit < cfg.DefaultLimit {
			cfg.MaxLimit = cfg.DefaultLimit
		}
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = defaultDetailConcurrency
	}
	switch cfg.MergeOrder {
	case MergePreparedFirst, MergeIngredientsFirst:
	case "":
		cfg.MergeOrder = MergePreparedFirst
	default:
		return nil, errors.NewConfigurationError("unknown merge order " + cfg.MergeOrder)
	}

	return &Router{
		provider: provider,
		vocab:    vocab,
		cfg:      cfg,
		logger:   logger.Named("recipe-router"),
	}, nil
}

// Limit resolves a requested limit against the configured default and ceiling
func (r *Router) Limit(requested int) int {
	if requested <= 0 {
		return r.cfg.DefaultLimit
	}
	if requested > r.cfg.MaxLimit {
		return r.cfg.MaxLimit
	}
	return requested
}

// FindRecipes returns at most limit records for the given food names.
// Backend failures are logged and treated as empty results.
func (r *Router) FindRecipes(ctx context.Context, items []food.Label, limit int) []recipe.Record {
	limit = r.Limit(limit)

	ctx, span := tracer.Start(ctx, "RecipeRouter.FindRecipes")
	defer span.End()

	prepared, ingredients := r.vocab.Partition(items)
	span.SetAttributes(
		attribute.Int("recipes.limit", limit),
		attribute.Int("recipes.prepared", len(prepared)),
		attribute.Int("recipes.ingredients", len(ingredients)),
	)

	var preparedResults, ingredientResults []recipe.Record
	if len(prepared) > 0 {
		preparedResults = r.searchPrepared(ctx, prepared, limit)
	}
	if len(ingredients) > 0 {
		ingredientResults = r.searchIngredients(ctx, ingredients, limit)
	}

	merged := make([]recipe.Record, 0, limit)
	first, second := preparedResults, ingredientResults
	if r.cfg.MergeOrder == MergeIngredientsFirst {
		first, second = ingredientResults, preparedResults
	}
	merged = append(merged, first...)
	merged = append(merged, second...)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	span.SetAttributes(attribute.Int("recipes.returned", len(merged)))
	r.logger.Info("Recipes found",
		zap.Int("prepared_results", len(preparedResults)),
		zap.Int("ingredient_results", len(ingredientResults)),
		zap.Int("returned", len(merged)),
		zap.Int("limit", limit))

	return merged
}

func (r *Router) searchPrepared(ctx context.Context, phrases []food.Label, limit int) []recipe.Record {
	records, err := r.provider.SearchPrepared(ctx, outbound.PreparedQuery{
		Phrases: phrases,
		Number:  limit,
	})
	if err != nil {
		r.logger.Warn("Prepared food search failed", zap.Strings("foods", phrases), zap.Error(err))
		return nil
	}

	results := make([]recipe.Record, 0, len(records))
	for _, rec := range records {
		if rec.HasInstructions() {
			results = append(results, rec)
		}
	}
	return results
}

func (r *Router) searchIngredients(ctx context.Context, ingredients []food.Label, limit int) []recipe.Record {
	summaries, err := r.provider.FindByIngredients(ctx, outbound.IngredientQuery{
		Ingredients:  ingredients,
		Number:       limit,
		IgnorePantry: true,
	})
	if err != nil {
		r.logger.Warn("Ingredient search failed", zap.Strings("ingredients", ingredients), zap.Error(err))
		return nil
	}
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}

	details := make([]*recipe.Record, len(summaries))
	var g errgroup.Group
	g.SetLimit(r.cfg.DetailConcurrency)
	for i, summary := range summaries {
		i, id := i, summary.ID
		if id == 0 {
			continue
		}
		g.Go(func() error {
			rec, err := r.provider.GetInformation(ctx, id)
			if err != nil {
				r.logger.Warn("Recipe detail fetch failed", zap.Int64("recipe_id", id), zap.Error(err))
				return nil
			}
			details[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	results := make([]recipe.Record, 0, len(details))
	for _, rec := range details {
		if rec != nil {
			results = append(results, *rec)
		}
	}
	return results
}

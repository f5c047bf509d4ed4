package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/infrastructure/digitec"
	"github.com/buywithme/assistant/internal/infrastructure/metrics"
	"github.com/buywithme/assistant/internal/logger"
)

// DefaultMaxProducts bounds a catalogue lookup when no limit is given
const DefaultMaxProducts = 12

// CatalogConfig holds configuration for the catalogue service
type CatalogConfig struct {
	MaxProducts int
	Logger      *zap.Logger
}

// CatalogService looks up retailer listings, caching each query's products forever
type CatalogService struct {
	cache        domain.CacheRepository
	retailer     domain.RetailerClient
	preprocessor *QueryPreprocessor
	maxProducts  int
	logger       *zap.Logger
}

// NewCatalogService creates a catalogue service with dependencies
func NewCatalogService(
	cache domain.CacheRepository,
	retailer domain.RetailerClient,
	config CatalogConfig,
) *CatalogService {
	maxProducts := config.MaxProducts
	if maxProducts <= 0 {
		maxProducts = DefaultMaxProducts
	}

	l := logger.OrNop(config.Logger)
	return &CatalogService{
		cache:        cache,
		retailer:     retailer,
		preprocessor: NewQueryPreprocessor(l),
		maxProducts:  maxProducts,
		logger:       l,
	}
}

// FetchProducts returns up to limit products for query.
// Flow: check cache -> fetch listing -> parse -> cache -> return.
// forceRefresh skips the cached copy and overwrites it.
func (s *CatalogService) FetchProducts(ctx context.Context, query string, limit int, forceRefresh bool) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = s.maxProducts
	}

	cacheKey := catalogCacheKey(query)

	if !forceRefresh {
		products, err := s.getFromCache(ctx, cacheKey)
		if err == nil {
			metrics.CatalogLookups.WithLabelValues("hit").Inc()
			s.logger.Debug("catalog cache hit", zap.String("query", query), zap.Int("products", len(products)))
			return capProducts(products, limit), nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("query", query), zap.Error(err))
		}
	}
	metrics.CatalogLookups.WithLabelValues("miss").Inc()

	start := time.Now()
	markdown, err := s.retailer.FetchListing(ctx, query)
	metrics.UpstreamDuration.WithLabelValues("retailer").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrRetailerFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRetailerFailure, err)
	}

	products := digitec.ParseListing(markdown, limit)

	if err := s.setInCache(ctx, cacheKey, products); err != nil {
		// Log but don't fail if caching fails
		s.logger.Warn("catalog cache write failed", zap.String("query", query), zap.Error(err))
	}

	s.logger.Info("catalog fetched", zap.String("query", query), zap.Int("products", len(products)))
	return products, nil
}

// SearchProducts looks up a category refined by search terms and returns up
// to limit products with distinct ids. Twice the limit is fetched so that
// duplicates do not shrink the result.
func (s *CatalogService) SearchProducts(ctx context.Context, category string, terms []string, limit int) ([]domain.Product, error) {
	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("%w: category is empty", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = s.maxProducts
	}

	query := s.preprocessor.BuildCatalogQuery(category, terms)
	fetched, err := s.FetchProducts(ctx, query, limit*2, false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(fetched))
	results := make([]domain.Product, 0, limit)
	for _, product := range fetched {
		if seen[product.ProductID] {
			continue
		}
		seen[product.ProductID] = true
		results = append(results, product)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// catalogCacheKey creates the cache key for a query.
// Format: "digitec:{sha256 hex of query}"
func catalogCacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return digitec.Retailer + ":" + hex.EncodeToString(sum[:])
}

// getFromCache retrieves products from cache; an undecodable entry is removed and reported as a miss
func (s *CatalogService) getFromCache(ctx context.Context, key string) ([]domain.Product, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	if err := json.Unmarshal(value, &products); err != nil {
		s.logger.Warn("dropping corrupt catalog cache entry", zap.String("key", key), zap.Error(err))
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			s.logger.Warn("catalog cache delete failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, domain.ErrCacheMiss
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// setInCache stores products without expiry
func (s *CatalogService) setInCache(ctx context.Context, key string, products []domain.Product) error {
	value, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	return s.cache.Set(ctx, key, value, 0)
}

func capProducts(products []domain.Product, limit int) []domain.Product {
	if len(products) > limit {
		return products[:limit]
	}
	return products
}

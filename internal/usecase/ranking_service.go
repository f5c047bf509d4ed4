package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/logger"
)

// unrankedPosition sorts entries without a rank after every ranked one
const unrankedPosition = 999

// RankingConfig holds configuration for the ranking service
type RankingConfig struct {
	Logger *zap.Logger
}

// RankingService asks the model to score retailer products against shopper requirements
type RankingService struct {
	llm    domain.LLMClient
	logger *zap.Logger
}

// NewRankingService creates a ranking service
func NewRankingService(llm domain.LLMClient, config RankingConfig) *RankingService {
	return &RankingService{
		llm:    llm,
		logger: logger.OrNop(config.Logger),
	}
}

// productID accepts ids the model writes either as strings or as numbers
type productID string

func (id *productID) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = productID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = productID(n.String())
	return nil
}

type rankedItem struct {
	ProductID productID `json:"product_id"`
	Score     *float64  `json:"score"`
	Rank      *float64  `json:"rank"`
	Rationale *string   `json:"rationale"`
	PriceCHF  *float64  `json:"price_chf"`
	Link      *string   `json:"link"`
	KeySpecs  *string   `json:"key_specs"`
}

type rankingReply struct {
	RankedProducts []rankedItem `json:"ranked_products"`
}

// RankProducts returns the supplied products ranked by the model, best first.
// Entries naming a product that was not supplied are dropped. Link and price
// come from the supplied product; the model's price is used only when the
// listing had none.
func (s *RankingService) RankProducts(
	ctx context.Context,
	requirements map[string]any,
	products []domain.Product,
) ([]domain.RankedProduct, error) {
	if len(products) == 0 {
		return []domain.RankedProduct{}, nil
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}

	prompt, err := buildRankingPrompt(requirements, products)
	if err != nil {
		return nil, err
	}

	var reply rankingReply
	if err := generateJSON(ctx, s.llm, s.logger, "rank", rankingSystemPrompt, prompt, rankingSchema, &reply); err != nil {
		return nil, err
	}

	ranked := make([]domain.RankedProduct, 0, len(reply.RankedProducts))
	for _, item := range reply.RankedProducts {
		id := strings.TrimSpace(string(item.ProductID))
		product, ok := byID[id]
		if !ok {
			s.logger.Debug("ranking entry dropped, unknown product", zap.String("product_id", id))
			continue
		}
		ranked = append(ranked, newRankedProduct(id, item, product))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rank < ranked[j].Rank
	})

	s.logger.Info("products ranked",
		zap.Int("supplied", len(products)),
		zap.Int("ranked", len(ranked)),
	)
	return ranked, nil
}

func newRankedProduct(id string, item rankedItem, product domain.Product) domain.RankedProduct {
	ranked := domain.RankedProduct{
		ProductID: id,
		Rank:      unrankedPosition,
		Rationale: deref(item.Rationale),
		PriceCHF:  product.PriceCHF,
		Link:      product.Link,
		KeySpecs:  deref(item.KeySpecs),
	}
	if item.Score != nil {
		ranked.Score = *item.Score
	}
	if item.Rank != nil {
		// models sometimes write ranks as 2.0
		ranked.Rank = int(math.Round(*item.Rank))
	}
	if ranked.PriceCHF == 0 && item.PriceCHF != nil {
		ranked.PriceCHF = *item.PriceCHF
	}
	if ranked.KeySpecs == "" {
		ranked.KeySpecs = product.SpecsSummary
	}
	return ranked
}

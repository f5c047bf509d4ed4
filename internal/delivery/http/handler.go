package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/logger"
)

// Clarifier runs one step of the clarification interview
type Clarifier interface {
	NextQuestion(ctx context.Context, state *domain.ClarificationState) (string, bool, error)
}

// Researcher drafts queries, collects evidence and recommends products
type Researcher interface {
	CraftSearchQueries(ctx context.Context, topic, shopperSummary string) ([]string, error)
	CollectResearch(ctx context.Context, queries []string, perQueryResults int) (domain.Research, error)
	RecommendProducts(ctx context.Context, topic, shopperSummary string, research domain.Research) (*domain.RecommendationResult, error)
}

// Catalog searches the retailer catalogue
type Catalog interface {
	SearchProducts(ctx context.Context, category string, terms []string, limit int) ([]domain.Product, error)
}

// Ranker scores products against shopper requirements
type Ranker interface {
	RankProducts(ctx context.Context, requirements map[string]any, products []domain.Product) ([]domain.RankedProduct, error)
}

// HandlerConfig wires the services behind the API. A nil service makes its
// endpoints answer 503.
type HandlerConfig struct {
	Clarifier  Clarifier
	Researcher Researcher
	Catalog    Catalog
	Ranker     Ranker
	Logger     *zap.Logger
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	clarifier  Clarifier
	researcher Researcher
	catalog    Catalog
	ranker     Ranker
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(config HandlerConfig) *Handler {
	return &Handler{
		clarifier:  config.Clarifier,
		researcher: config.Researcher,
		catalog:    config.Catalog,
		ranker:     config.Ranker,
		logger:     logger.OrNop(config.Logger),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "buywithme-assistant",
		"version": "1.0.0",
	})
}

type clarifyRequest struct {
	State *domain.ClarificationState `json:"state" binding:"required"`
}

type clarifyResponse struct {
	Question string                     `json:"question,omitempty"`
	Done     bool                       `json:"done"`
	State    *domain.ClarificationState `json:"state"`
}

// NextQuestion handles POST /api/v1/clarify/next
func (h *Handler) NextQuestion(c *gin.Context) {
	if h.clarifier == nil {
		notConfigured(c, "clarification")
		return
	}

	var req clarifyRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.State.Topic == "" {
		badRequest(c, "state.topic is required")
		return
	}
	if req.State.Turns == nil {
		req.State.Turns = []domain.ClarificationTurn{}
	}

	question, ok, err := h.clarifier.NextQuestion(c.Request.Context(), req.State)
	if err != nil {
		h.respondError(c, "clarify", err)
		return
	}

	c.JSON(http.StatusOK, clarifyResponse{Question: question, Done: !ok, State: req.State})
}

type queriesRequest struct {
	Topic          string `json:"topic" binding:"required"`
	ShopperSummary string `json:"shopper_summary"`
}

// DraftQueries handles POST /api/v1/research/queries
func (h *Handler) DraftQueries(c *gin.Context) {
	if h.researcher == nil {
		notConfigured(c, "research")
		return
	}

	var req queriesRequest
	if !bindJSON(c, &req) {
		return
	}

	queries, err := h.researcher.CraftSearchQueries(c.Request.Context(), req.Topic, req.ShopperSummary)
	if err != nil {
		h.respondError(c, "draft_queries", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"queries": queries})
}

type collectRequest struct {
	Queries         []string `json:"queries" binding:"required,min=1"`
	PerQueryResults int      `json:"per_query_results" binding:"gte=0,lte=20"`
}

// CollectResearch handles POST /api/v1/research/collect
func (h *Handler) CollectResearch(c *gin.Context) {
	if h.researcher == nil {
		notConfigured(c, "research")
		return
	}

	var req collectRequest
	if !bindJSON(c, &req) {
		return
	}

	research, err := h.researcher.CollectResearch(c.Request.Context(), req.Queries, req.PerQueryResults)
	if err != nil {
		h.respondError(c, "collect", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"research": research})
}

type recommendRequest struct {
	Topic          string          `json:"topic" binding:"required"`
	ShopperSummary string          `json:"shopper_summary"`
	Research       domain.Research `json:"research"`
}

// Recommend handles POST /api/v1/recommendations
func (h *Handler) Recommend(c *gin.Context) {
	if h.researcher == nil {
		notConfigured(c, "research")
		return
	}

	var req recommendRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.researcher.RecommendProducts(c.Request.Context(), req.Topic, req.ShopperSummary, req.Research)
	if err != nil {
		h.respondError(c, "recommend", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type productSearchRequest struct {
	Category string   `json:"category" binding:"required"`
	Terms    []string `json:"terms"`
	Limit    int      `json:"limit" binding:"gte=0,lte=50"`
}

// SearchProducts handles POST /api/v1/products/search
func (h *Handler) SearchProducts(c *gin.Context) {
	if h.catalog == nil {
		notConfigured(c, "catalog")
		return
	}

	var req productSearchRequest
	if !bindJSON(c, &req) {
		return
	}

	products, err := h.catalog.SearchProducts(c.Request.Context(), req.Category, req.Terms, req.Limit)
	if err != nil {
		h.respondError(c, "product_search", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

type rankRequest struct {
	Requirements map[string]any   `json:"requirements"`
	Products     []domain.Product `json:"products"`
}

// RankProducts handles POST /api/v1/products/rank
func (h *Handler) RankProducts(c *gin.Context) {
	if h.ranker == nil {
		notConfigured(c, "ranking")
		return
	}

	var req rankRequest
	if !bindJSON(c, &req) {
		return
	}

	ranked, err := h.ranker.RankProducts(c.Request.Context(), req.Requirements, req.Products)
	if err != nil {
		h.respondError(c, "rank", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ranked_products": ranked})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

func notConfigured(c *gin.Context, service string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": service + " service is not configured"})
}

// respondError maps service errors onto HTTP statuses
func (h *Handler) respondError(c *gin.Context, operation string, err error) {
	_ = c.Error(err)

	var malformed *domain.MalformedResponseError
	switch {
	case errors.As(err, &malformed):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error": "the language model returned an invalid JSON payload",
			"raw":   malformed.Raw,
		})
	case errors.Is(err, domain.ErrInvalidRequest):
		badRequest(c, err.Error())
	case errors.Is(err, domain.ErrNoSearchQueries):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, domain.ErrLLMFailure),
		errors.Is(err, domain.ErrSearchFailure),
		errors.Is(err, domain.ErrRetailerFailure):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Error("unexpected service error", zap.String("operation", operation), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feedmill/quote-service/internal/adapters/http/dto"
	"github.com/feedmill/quote-service/internal/app"
)

// CatalogHandler serves the product catalog and payment terms.
type CatalogHandler struct {
	service *app.QuoteService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(service *app.QuoteService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListProducts handles GET /api/v1/catalog.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewCatalogResponse(h.service.Catalog()))
}

// Reload handles POST /api/v1/catalog/reload. A failed reload leaves the
// previous catalog active.
func (h *CatalogHandler) Reload(c *gin.Context) {
	catalog, err := h.service.ReloadCatalog(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewCatalogResponse(catalog.Products()))
}

// ListTerms handles GET /api/v1/terms.
func (h *CatalogHandler) ListTerms(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewTermsResponse(h.service.Terms()))
}

// Simulate handles POST /api/v1/pricing/simulate.
func (h *CatalogHandler) Simulate(c *gin.Context) {
	var req dto.SimulateRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	sim, err := h.service.Simulate(c.Request.Context(), req.Inputs(), req.Term)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSimulationResponse(sim))
}

// RegisterCatalogRoutes registers the read-only catalog, term and pricing
// routes. The reload route is registered by the caller so it can sit
// behind authorization.
func (h *CatalogHandler) RegisterCatalogRoutes(rg *gin.RouterGroup) {
	rg.GET("/catalog", h.ListProducts)
	rg.GET("/terms", h.ListTerms)
	rg.POST("/pricing/simulate", h.Simulate)
}

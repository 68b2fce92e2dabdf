package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feedmill/quote-service/internal/adapters/http/dto"
	"github.com/feedmill/quote-service/internal/app"
	"github.com/feedmill/quote-service/internal/platform/logging"
)

// QuoteHandler serves the quote session endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// quoteContext binds the :id parameter into the request logger.
func quoteContext(c *gin.Context) string {
	id := c.Param("id")
	c.Request = c.Request.WithContext(logging.WithQuoteID(c.Request.Context(), id))
	return id
}

// CreateQuote handles POST /api/v1/quotes.
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	quote, err := h.service.CreateQuote(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Location", c.FullPath()+"/"+quote.ID())
	c.JSON(http.StatusCreated, dto.NewQuoteResponse(quote))
}

// GetQuote handles GET /api/v1/quotes/:id.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	id := quoteContext(c)

	quote, err := h.service.GetQuote(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// DiscardQuote handles DELETE /api/v1/quotes/:id.
func (h *QuoteHandler) DiscardQuote(c *gin.Context) {
	id := quoteContext(c)

	if err := h.service.DiscardQuote(c.Request.Context(), id); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AddItem handles POST /api/v1/quotes/:id/items.
func (h *QuoteHandler) AddItem(c *gin.Context) {
	id := quoteContext(c)

	var req dto.ItemRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	quote, item, err := h.service.AddItem(c.Request.Context(), id, req.ToInput())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.AddItemResponse{
		Item:  dto.NewLineItemResponse(item),
		Quote: dto.NewQuoteResponse(quote),
	})
}

// ClearItems handles DELETE /api/v1/quotes/:id/items.
func (h *QuoteHandler) ClearItems(c *gin.Context) {
	id := quoteContext(c)

	quote, err := h.service.ClearItems(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// SelectTerm handles PUT /api/v1/quotes/:id/term.
func (h *QuoteHandler) SelectTerm(c *gin.Context) {
	id := quoteContext(c)

	var req dto.SelectTermRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	quote, err := h.service.SelectTerm(c.Request.Context(), id, *req.Term)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// GetAllocation handles GET /api/v1/quotes/:id/allocation[?term=CODE].
func (h *QuoteHandler) GetAllocation(c *gin.Context) {
	id := quoteContext(c)

	var query dto.AllocationQuery
	if err := dto.BindQueryAndValidate(c, &query); err != nil {
		dto.HandleError(c, err)
		return
	}

	term, err := query.TermID()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	allocation, err := h.service.Allocation(c.Request.Context(), id, term)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAllocationResponse(allocation))
}

// Export handles GET /api/v1/quotes/:id/export, returning the rendered
// document as an attachment.
func (h *QuoteHandler) Export(c *gin.Context) {
	id := quoteContext(c)

	export, err := h.service.Export(c.Request.Context(), id)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Data(http.StatusOK, export.ContentType, export.Content)
}

// RegisterQuoteRoutes registers quote routes on the given router group.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.POST("", h.CreateQuote)
	quotes.GET("/:id", h.GetQuote)
	quotes.DELETE("/:id", h.DiscardQuote)
	quotes.POST("/:id/items", h.AddItem)
	quotes.DELETE("/:id/items", h.ClearItems)
	quotes.PUT("/:id/term", h.SelectTerm)
	quotes.GET("/:id/allocation", h.GetAllocation)
	quotes.GET("/:id/export", h.Export)
}

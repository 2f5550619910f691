package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"blgu-assess-go/internal/service"
	"blgu-assess-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SearchIndicators runs a full-text search over published indicators.
// Query parameters: query, governanceAreaId, size.
func (h *SearchHandler) SearchIndicators(c *gin.Context) {
	query := c.Query("query")
	area, _ := strconv.Atoi(c.DefaultQuery("governanceAreaId", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	log.Infof("[SearchHandler] query: %s, governanceAreaId: %d", query, area)

	hits, err := h.searchService.SearchIndicators(c.Request.Context(), query, area, size)
	if err != nil {
		fail(c, "SearchIndicators", err)
		return
	}
	log.Infof("[SearchHandler] query '%s' returned %d hits", query, len(hits))
	success(c, hits)
}

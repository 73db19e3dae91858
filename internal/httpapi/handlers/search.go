package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quillchat/quillchat/internal/common"
)

type searchReq struct {
	Query                    string `json:"query" binding:"required"`
	IncludeImages            bool   `json:"includeImages"`
	IncludeImageDescriptions bool   `json:"includeImageDescriptions"`
}

// WebSearch proxies one query to the search collaborator and returns its
// ranked results unchanged (the provider's own answer, when present, arrives
// as the first result).
func (h *Handler) WebSearch(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "query required")
		return
	}

	res, err := h.Search.Search(c.Request.Context(), req.Query, req.IncludeImages, req.IncludeImageDescriptions)
	if err != nil {
		h.Logger.Warn("search failed", zap.String("query", req.Query), zap.Error(err))
		common.Error(c, http.StatusBadGateway, err.Error())
		return
	}

	common.OK(c, res)
}

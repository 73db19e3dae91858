package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quillchat/quillchat/internal/chat"
	"github.com/quillchat/quillchat/internal/common"
	"github.com/quillchat/quillchat/internal/httpapi/middleware"
)

// ListChatSessions returns the caller's sessions, newest activity first.
func (h *Handler) ListChatSessions(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.ChatSvc.ResolveUser(c.Request.Context(), ident)
	if err != nil {
		h.Logger.Error("resolve user failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "store unavailable")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	sessions, err := h.ChatSvc.ListSessions(c.Request.Context(), user, limit)
	if err != nil {
		h.Logger.Error("list sessions failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "store unavailable")
		return
	}

	common.OK(c, gin.H{"sessions": sessions})
}

// GetChatSession returns one owned session and its messages in order.
func (h *Handler) GetChatSession(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.ChatSvc.ResolveUser(c.Request.Context(), ident)
	if err != nil {
		h.Logger.Error("resolve user failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "store unavailable")
		return
	}

	sess, msgs, err := h.ChatSvc.SessionWithMessages(c.Request.Context(), user, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Error(c, http.StatusNotFound, "session not found")
			return
		}
		h.Logger.Error("load session failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "store unavailable")
		return
	}

	common.OK(c, gin.H{"session": sess, "messages": msgs})
}

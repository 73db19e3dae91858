package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quillchat/quillchat/internal/ai"
	"github.com/quillchat/quillchat/internal/chat"
	"github.com/quillchat/quillchat/internal/common"
	"github.com/quillchat/quillchat/internal/httpapi/middleware"
	"github.com/quillchat/quillchat/internal/models"
	"github.com/quillchat/quillchat/internal/search"
	"github.com/quillchat/quillchat/internal/store/rabbitmq"
)

// SessionIDHeader lets the client adopt a server-assigned session id on the
// first turn of a conversation.
const SessionIDHeader = "x-session-id"

const defaultModel = "gpt-3.5-turbo"

type chatReq struct {
	Messages      []ai.Message `json:"messages"`
	Model         string       `json:"model"`
	SearchEnabled bool         `json:"searchEnabled"`
	SessionID     string       `json:"sessionId"`
}

// ChatProxy is the streaming chat-completion proxy: identity, session
// resolution, pre-call persistence, optional search enrichment, upstream
// dispatch, live relay, detached finalization. It is the only place the
// client-visible error envelope for chat turns is produced.
func (h *Handler) ChatProxy(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Model == "" {
		req.Model = defaultModel
	}

	firstUserText, turnText := userTurnTexts(req.Messages)
	if turnText == "" {
		common.Error(c, http.StatusBadRequest, "messages required")
		return
	}

	// Model validation happens before any persistence or upstream call.
	info, err := h.Registry.Lookup(req.Model)
	if err != nil {
		common.Error(c, http.StatusBadRequest, "Invalid model specified")
		return
	}

	ctx := c.Request.Context()

	user, err := h.ChatSvc.ResolveUser(ctx, ident)
	if err != nil {
		h.Logger.Error("resolve user failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "store unavailable")
		return
	}

	sess, err := h.ChatSvc.ResolveSession(ctx, user, req.SessionID, firstUserText)
	if err != nil {
		h.Logger.Error("resolve session failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "store unavailable")
		return
	}

	// One in-flight turn per session: the transcript append is
	// last-writer-wins, so a second concurrent turn is refused rather
	// than silently racing.
	lockHeld := false
	if h.Redis != nil {
		got, lerr := h.Redis.AcquireTurnLock(ctx, sess.SessionID, h.Cfg.RequestTimeout)
		if lerr != nil {
			h.Logger.Warn("turn lock unavailable, proceeding unlocked", zap.Error(lerr))
		} else if !got {
			common.Error(c, http.StatusConflict, "session busy")
			return
		} else {
			lockHeld = true
		}
	}
	unlock := func() {
		if lockHeld {
			lockHeld = false
			if err := h.Redis.ReleaseTurnLock(context.Background(), sess.SessionID); err != nil {
				h.Logger.Warn("turn lock release failed", zap.Error(err))
			}
		}
	}

	msg, err := h.ChatSvc.RecordUserTurn(ctx, sess, user, turnText)
	if err != nil {
		unlock()
		h.Logger.Error("record user turn failed", zap.Error(err))
		common.Error(c, http.StatusInternalServerError, "store unavailable")
		return
	}

	msgs := req.Messages
	if req.SearchEnabled {
		msgs = h.enrichWithSearch(ctx, msgs, turnText)
	}

	ur, err := ai.BuildRequest(info, msgs)
	if err != nil {
		unlock()
		common.Error(c, http.StatusBadRequest, "Unsupported model")
		return
	}

	upctx, cancel := context.WithTimeout(ctx, h.Cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	body, err := h.Dispatcher.Dispatch(upctx, ur)
	if err != nil {
		unlock()
		var ue *ai.UpstreamError
		if errors.As(err, &ue) {
			h.Metrics.UpstreamErrors.WithLabelValues(req.Model, strconv.Itoa(ue.StatusCode)).Inc()
			h.Logger.Warn("upstream error",
				zap.String("model", req.Model),
				zap.Int("status", ue.StatusCode),
				zap.String("message", ue.Message))
			common.Error(c, mirrorStatus(ue.StatusCode), ue.Error())
			return
		}
		h.Logger.Error("upstream dispatch failed", zap.Error(err))
		common.Error(c, http.StatusBadGateway, "upstream unreachable")
		return
	}
	defer body.Close()

	h.Metrics.TurnsStarted.WithLabelValues(req.Model).Inc()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Header(SessionIDHeader, sess.SessionID)
	c.Status(http.StatusOK)

	acc := ai.NewAccumulator(ur.Family, h.Logger)
	relayErr := ai.Relay(upctx, body, c.Writer, acc)

	elapsed := time.Since(start)
	h.Metrics.TurnLatency.WithLabelValues(req.Model).Observe(elapsed.Seconds())

	// Disconnect policy: persist whatever was accumulated, marked partial.
	partial := relayErr != nil
	if relayErr != nil {
		h.Logger.Info("stream ended early",
			zap.String("session_id", sess.SessionID),
			zap.Error(relayErr))
	}

	answer := acc.Answer()
	if answer == "" {
		h.Logger.Warn("empty answer accumulated",
			zap.String("session_id", sess.SessionID),
			zap.String("model", req.Model))
	}
	if req.SearchEnabled {
		answer = ai.RewriteCitations(answer)
	}
	if r := acc.Reasoning(); r != "" {
		h.Logger.Debug("reasoning content discarded", zap.Int("bytes", len(r)))
	}

	h.finalizeDetached(sess, msg, user, turnText, answer, req.Model, elapsed.Milliseconds(), partial, unlock)
}

// finalizeDetached runs the post-stream store update as an explicit
// background task. Its failures are logged and counted, never surfaced: the
// client already received every byte it is going to get.
func (h *Handler) finalizeDetached(sess *chat.Session, msg *chat.Message, user *models.User, userText, answer, model string, elapsedMs int64, partial bool, unlock func()) {
	go func() {
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		err := h.ChatSvc.FinalizeTurn(ctx, sess, msg, userText, answer, elapsedMs, partial)
		if err != nil {
			// One retry, then give up; this write must not loop forever.
			err = h.ChatSvc.FinalizeTurn(ctx, sess, msg, userText, answer, elapsedMs, partial)
		}
		if err != nil {
			h.Metrics.FinalizeErrors.Inc()
			h.Metrics.TurnsFinalized.WithLabelValues(model, "error").Inc()
			h.Logger.Error("finalize turn failed",
				zap.String("session_id", sess.SessionID),
				zap.Uint64("message_id", msg.ID),
				zap.Error(err))
			return
		}
		h.Metrics.TurnsFinalized.WithLabelValues(model, "ok").Inc()

		if err := h.ChatSvc.TouchUserActivity(ctx, user); err != nil {
			h.Logger.Warn("touch user activity failed", zap.Error(err))
		}
		if h.Redis != nil {
			if err := h.Redis.CacheLastSeen(ctx, user.Email, time.Now()); err != nil {
				h.Logger.Warn("last seen cache write failed", zap.Error(err))
			}
		}
		if h.Rabbit != nil {
			ev := rabbitmq.TurnEvent{
				SessionID: sess.SessionID,
				MessageID: msg.ID,
				UserID:    user.ID,
				Model:     model,
				ElapsedMs: elapsedMs,
				Partial:   partial,
			}
			if err := h.Rabbit.PublishTurn(ctx, ev); err != nil {
				h.Logger.Warn("turn event publish failed", zap.Error(err))
			}
		}
	}()
}

// enrichWithSearch injects the formatted results as one system-role message
// ahead of the final user turn. A failed search degrades to an unenriched
// turn; it never fails the request.
func (h *Handler) enrichWithSearch(ctx context.Context, msgs []ai.Message, query string) []ai.Message {
	res, err := h.Search.Search(ctx, query, false, false)
	if err != nil {
		h.Logger.Warn("search enrichment failed", zap.Error(err))
		return msgs
	}
	if len(res.Results) == 0 {
		return msgs
	}

	sys := ai.Message{Role: ai.RoleSystem, Content: search.FormatResults(res.Results)}
	out := make([]ai.Message, 0, len(msgs)+1)
	out = append(out, msgs[:len(msgs)-1]...)
	out = append(out, sys, msgs[len(msgs)-1])
	return out
}

// userTurnTexts extracts the first user message (session title source) and
// the last one (the current turn).
func userTurnTexts(msgs []ai.Message) (first, last string) {
	for _, m := range msgs {
		if m.Role != ai.RoleUser || m.Content == "" {
			continue
		}
		if first == "" {
			first = m.Content
		}
		last = m.Content
	}
	return first, last
}

// mirrorStatus maps an upstream status onto the client response: mirrored
// when it is a sensible HTTP status, 500 otherwise.
func mirrorStatus(status int) int {
	if status >= 400 && status < 600 {
		return status
	}
	return http.StatusInternalServerError
}

package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quillchat/quillchat/internal/common"
	"github.com/quillchat/quillchat/internal/identity"
	"github.com/quillchat/quillchat/internal/models"
)

// ErrStoreUnavailable wraps persistence failures so the orchestrator can
// distinguish them from upstream/provider errors. Pre-call store failures are
// fatal to the request; post-call ones are logged and swallowed.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrSessionNotFound is returned for sessions that do not exist or belong to
// another user; the two cases are deliberately indistinguishable.
var ErrSessionNotFound = errors.New("session not found")

const titleLimit = 50

// Service is the session & message store adapter: everything the chat proxy
// persists goes through it.
type Service struct {
	repo   *Repo
	logger *zap.Logger
}

func NewService(repo *Repo, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// ResolveUser upserts the authenticated principal by email and returns the
// stored row, profile fields and lastSeenAt refreshed.
func (s *Service) ResolveUser(ctx context.Context, ident *identity.Identity) (*models.User, error) {
	u := &models.User{
		Email: ident.Email,
		Name:  ident.Name,
		Image: ident.Image,
	}
	if err := s.repo.UpsertUserByEmail(ctx, u); err != nil {
		return nil, storeErr(err)
	}
	// The upsert does not report the surviving row's id on conflict.
	stored, err := s.repo.GetUserByEmail(ctx, ident.Email)
	if err != nil {
		return nil, storeErr(err)
	}
	return stored, nil
}

// ResolveSession returns the session this turn belongs to. No id means a new
// session titled from the first user message. An unknown id also means a new
// session: stale client state must never fail the request.
func (s *Service) ResolveSession(ctx context.Context, user *models.User, clientSessionID, firstUserText string) (*Session, error) {
	if clientSessionID != "" {
		sess, err := s.repo.GetSessionBySessionID(ctx, clientSessionID)
		if err == nil && sess.UserID == user.ID {
			return sess, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storeErr(err)
		}
		// Unknown id, or an id this user does not own: both are treated
		// as stale client state and fall back to a fresh session.
		s.logger.Info("stale client session id, creating new session",
			zap.String("session_id", clientSessionID))
	}

	sid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		SessionID: sid,
		UserID:    user.ID,
		Title:     deriveTitle(firstUserText),
		Summary:   Summary{},
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, storeErr(err)
	}
	return sess, nil
}

// RecordUserTurn inserts the inbound user message with no answer yet.
func (s *Service) RecordUserTurn(ctx context.Context, sess *Session, user *models.User, text string) (*Message, error) {
	m := &Message{
		SessionID: sess.SessionID,
		UserID:    user.ID,
		Role:      "user",
		Content:   text,
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, storeErr(err)
	}
	return m, nil
}

// FinalizeTurn patches the turn's message with the finalized answer and
// latency, and appends the {user,text},{assistant,answer} pair to the session
// transcript. A retry with the same pair appends nothing: the last two
// entries are compared before appending.
func (s *Service) FinalizeTurn(ctx context.Context, sess *Session, msg *Message, userText, botAnswer string, elapsedMs int64, partial bool) error {
	if err := s.repo.FinalizeMessage(ctx, msg.ID, botAnswer, elapsedMs, partial); err != nil {
		return storeErr(err)
	}

	// Re-read: the in-memory copy may predate a finalized earlier turn.
	stored, err := s.repo.GetSessionBySessionID(ctx, sess.SessionID)
	if err != nil {
		return storeErr(err)
	}

	if !hasTrailingPair(stored.Summary, userText, botAnswer) {
		stored.Summary = append(stored.Summary,
			SummaryEntry{Role: "user", Content: userText},
			SummaryEntry{Role: "assistant", Content: botAnswer},
		)
	}
	stored.LastAnswer = &botAnswer
	if err := s.repo.SaveSessionTranscript(ctx, stored); err != nil {
		return storeErr(err)
	}
	sess.Summary = stored.Summary
	sess.LastAnswer = stored.LastAnswer
	return nil
}

// TouchUserActivity stamps lastChatAt. Best-effort: callers log, not fail.
func (s *Service) TouchUserActivity(ctx context.Context, user *models.User) error {
	if err := s.repo.TouchUserChat(ctx, user.ID); err != nil {
		return storeErr(err)
	}
	return nil
}

// ListSessions returns the caller's sessions, newest activity first.
func (s *Service) ListSessions(ctx context.Context, user *models.User, limit int) ([]Session, error) {
	out, err := s.repo.ListSessions(ctx, user.ID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// SessionWithMessages loads one owned session and its messages in order.
func (s *Service) SessionWithMessages(ctx context.Context, user *models.User, sessionID string) (*Session, []Message, error) {
	sess, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, storeErr(err)
	}
	if sess.UserID != user.ID {
		return nil, nil, ErrSessionNotFound
	}
	msgs, err := s.repo.ListMessages(ctx, user.ID, sessionID, 0)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	return sess, msgs, nil
}

func hasTrailingPair(sum Summary, userText, botAnswer string) bool {
	n := len(sum)
	if n < 2 {
		return false
	}
	return sum[n-2].Role == "user" && sum[n-2].Content == userText &&
		sum[n-1].Role == "assistant" && sum[n-1].Content == botAnswer
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) > titleLimit {
		runes = runes[:titleLimit]
	}
	t := string(runes)
	if t == "" {
		t = "New chat"
	}
	return t
}

package chat

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quillchat/quillchat/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// UpsertUserByEmail inserts or refreshes the user row keyed by email. The
// conflict target is the unique email index, so concurrent sign-ins of the
// same identity collapse onto one row.
func (r *Repo) UpsertUserByEmail(ctx context.Context, u *models.User) error {
	now := time.Now()
	u.LastSeenAt = &now
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "image", "last_seen_at", "updated_at"}),
	}).Create(u).Error
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) TouchUserChat(ctx context.Context, userID uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"last_chat_at": now, "last_seen_at": now}).Error
}

func (r *Repo) IncrementUserTurns(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("turn_count", gorm.Expr("turn_count + 1")).Error
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSessionTranscript persists the summary, lastAnswer, and updatedAt of a
// session in one update keyed by primary id.
func (r *Repo) SaveSessionTranscript(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"summary":     s.Summary,
			"last_answer": s.LastAnswer,
			"updated_at":  time.Now(),
		}).Error
}

// ListSessions returns the user's sessions newest-first.
func (r *Repo) ListSessions(ctx context.Context, userID uint64, limit int) ([]Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// FinalizeMessage writes the answer and latency of a message exactly once:
// the guard on answer IS NULL makes a retried finalization a no-op.
func (r *Repo) FinalizeMessage(ctx context.Context, id uint64, answer string, elapsedMs int64, partial bool) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND answer IS NULL", id).
		Updates(map[string]any{
			"answer":           answer,
			"response_time_ms": elapsedMs,
			"partial":          partial,
		}).Error
}

// ListMessages returns messages in ASC id order (oldest -> newest).
func (r *Repo) ListMessages(ctx context.Context, userID uint64, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

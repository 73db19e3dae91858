package chat

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SummaryEntry is one {role, content} pair of a session's rolling transcript.
type SummaryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summary is the append-only transcript, stored as a JSON text column.
type Summary []SummaryEntry

func (s Summary) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Summary) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = Summary{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("summary: cannot scan %T", src)
	}
}

type Session struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string  `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	UserID    uint64  `gorm:"index;not null" json:"-"`
	Title     string  `gorm:"type:varchar(64);not null" json:"title"`
	Summary   Summary `gorm:"type:text" json:"summary"`

	// Most recent finalized bot answer, nil until the first turn completes.
	LastAnswer *string `gorm:"type:text" json:"last_answer"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string `gorm:"type:varchar(26);not null;index:idx_chat_msg_user_session_id,priority:2" json:"session_id"`
	UserID    uint64 `gorm:"not null;index:idx_chat_msg_user_session_id,priority:1" json:"-"`
	Role      string `gorm:"type:varchar(16);index;not null" json:"role"`
	Content   string `gorm:"type:text;not null" json:"content"`

	// Answer and ResponseTimeMs are written at most once, by the single
	// post-stream finalization of the turn that created this row.
	Answer         *string `gorm:"type:text" json:"answer"`
	ResponseTimeMs *int64  `json:"response_time_ms"`

	// Partial marks answers persisted after a mid-stream client disconnect.
	Partial bool `gorm:"not null;default:false" json:"partial,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;" json:"id"`
	WalletAddress string    `gorm:"uniqueIndex;not null" json:"walletAddress"`
	Email         string    `json:"email,omitempty"`
	Watchlist     Watchlist `gorm:"type:text;not null;default:'[]'" json:"watchlist"`
	Version       int       `gorm:"not null;default:0" json:"-"`
	Sessions      []Session `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Watchlist == nil {
		user.Watchlist = Watchlist{}
	}
	return
}

type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

func (session *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	return
}

// Watchlist is an ordered set of coin identifiers stored as a JSON array.
type Watchlist []string

func (w Watchlist) Contains(coinID string) bool {
	for _, id := range w {
		if id == coinID {
			return true
		}
	}
	return false
}

// Toggle returns a copy of w with coinID removed if present, appended otherwise.
// Duplicates already in w are collapsed.
func (w Watchlist) Toggle(coinID string) Watchlist {
	present := w.Contains(coinID)
	seen := make(map[string]struct{}, len(w)+1)
	out := make(Watchlist, 0, len(w)+1)

	for _, id := range w {
		if id == coinID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if !present {
		out = append(out, coinID)
	}
	return out
}

func (w Watchlist) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(w))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (w *Watchlist) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = Watchlist{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("watchlist: unsupported column type %T", src)
	}

	if len(raw) == 0 {
		*w = Watchlist{}
		return nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("watchlist: %w", err)
	}
	*w = ids
	return nil
}

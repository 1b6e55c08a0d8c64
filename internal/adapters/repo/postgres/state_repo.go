package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/modularstore/internal/domain"
)

// SessionRecord is the persisted client state of one session, stored as a
// single jsonb document.
type SessionRecord struct {
	Key       string              `gorm:"primaryKey;size:64"`
	State     domain.SessionState `gorm:"type:jsonb;serializer:json"`
	UpdatedAt time.Time
}

func (SessionRecord) TableName() string { return "session_states" }

type StateRepo struct{ db *gorm.DB }

func NewStateRepo(db *gorm.DB) *StateRepo { return &StateRepo{db: db} }

func (r *StateRepo) Load(ctx context.Context, key string) (domain.SessionState, error) {
	var rec SessionRecord
	k := strings.TrimSpace(key)
	if k == "" {
		return domain.SessionState{}, errors.New("empty session key")
	}
	if err := r.db.WithContext(ctx).First(&rec, "key = ?", k).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SessionState{}, domain.ErrNotFound
		}
		return domain.SessionState{}, err
	}
	return rec.State, nil
}

func (r *StateRepo) Save(ctx context.Context, key string, st domain.SessionState) error {
	k := strings.TrimSpace(key)
	if k == "" {
		return errors.New("empty session key")
	}
	rec := SessionRecord{Key: k, State: st, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(&rec).Error
}

// Purge drops sessions untouched since before.
func (r *StateRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&SessionRecord{})
	return res.RowsAffected, res.Error
}

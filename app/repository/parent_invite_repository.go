package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"gorm.io/gorm"
)

// parentInviteRepository implements the ParentInviteRepository interface
type parentInviteRepository struct {
	db *gorm.DB
}

// NewParentInviteRepository creates a new parent invite repository instance
func NewParentInviteRepository(db *gorm.DB) ParentInviteRepository {
	return &parentInviteRepository{db: db}
}

// Create inserts an invite. CreatedAt must be set by the caller so the quota
// window uses the same clock as CountSince.
func (r *parentInviteRepository) Create(ctx context.Context, invite *models.ParentInvite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

// CountSince counts invites of userID created strictly after since.
func (r *parentInviteRepository) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ParentInvite{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Count(&count).Error
	return count, err
}

func (r *parentInviteRepository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.ParentInvite{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": status,
			"error":  truncate(errMsg, 2000),
		}).Error
}

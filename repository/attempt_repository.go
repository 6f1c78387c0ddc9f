package repository

import (
	"context"
	"errors"
	"time"

	"salonreach-backend/models"
	"salonreach-backend/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ContactAttempt, error) {
	var attempt models.ContactAttempt
	err := r.db.WithContext(ctx).First(&attempt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// CreateQueued inserts a manual-inclusion entry. The partial unique index on
// open attempts is the real duplicate guard; the translated duplicate-key
// error maps to ErrDuplicateAttempt.
func (r *AttemptRepository) CreateQueued(ctx context.Context, a *models.ContactAttempt) error {
	a.Status = models.AttemptQueued
	a.PrioritySource = models.SourceManualInclusion
	err := r.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return services.ErrDuplicateAttempt
	}
	return err
}

func (r *AttemptRepository) CreateCleared(ctx context.Context, a *models.ContactAttempt, reason string) error {
	a.Status = models.AttemptCleared
	a.ClearReason = reason
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AttemptRepository) OldestQueued(ctx context.Context, limit int) ([]models.ContactAttempt, error) {
	var attempts []models.ContactAttempt
	err := r.db.WithContext(ctx).
		Where("status = ?", models.AttemptQueued).
		Order("created_at").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) Clear(ctx context.Context, attemptID uuid.UUID, reason string) error {
	return r.clearFrom(ctx, attemptID, reason, []models.AttemptStatus{models.AttemptQueued, models.AttemptPending})
}

func (r *AttemptRepository) ClearQueued(ctx context.Context, attemptID uuid.UUID, reason string) error {
	return r.clearFrom(ctx, attemptID, reason, []models.AttemptStatus{models.AttemptQueued})
}

// clearFrom is status-conditional so a terminal attempt can never regress.
func (r *AttemptRepository) clearFrom(ctx context.Context, attemptID uuid.UUID, reason string, from []models.AttemptStatus) error {
	res := r.db.WithContext(ctx).Model(&models.ContactAttempt{}).
		Where("id = ? AND status IN ?", attemptID, from).
		Updates(map[string]interface{}{
			"status":       models.AttemptCleared,
			"clear_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrAttemptNotOpen
	}
	return nil
}

func (r *AttemptRepository) OpenPending(ctx context.Context, customerID uuid.UUID) ([]models.ContactAttempt, error) {
	var attempts []models.ContactAttempt
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, models.AttemptPending).
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) MarkReturned(ctx context.Context, attemptID uuid.UUID, visitAt time.Time, daysToReturn int, revenue float64) error {
	res := r.db.WithContext(ctx).Model(&models.ContactAttempt{}).
		Where("id = ? AND status = ?", attemptID, models.AttemptPending).
		Updates(map[string]interface{}{
			"status":         models.AttemptReturned,
			"returned_at":    visitAt,
			"days_to_return": daysToReturn,
			"return_revenue": revenue,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrAttemptNotOpen
	}
	return nil
}

// SweepExpired is a single status-conditional bulk update: idempotent and
// order-independent by construction.
func (r *AttemptRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.ContactAttempt{}).
		Where("status = ? AND expires_at <= ?", models.AttemptPending, now).
		Update("status", models.AttemptExpired)
	return res.RowsAffected, res.Error
}

func (r *AttemptRepository) FindLinkBySID(ctx context.Context, sid string) (*models.CampaignLink, error) {
	if sid == "" {
		return nil, nil
	}
	var link models.CampaignLink
	err := r.db.WithContext(ctx).First(&link, "message_sid = ?", sid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *AttemptRepository) SetDeliveryStatus(ctx context.Context, linkID uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&models.CampaignLink{}).
		Where("id = ?", linkID).
		Update("delivery_status", status).Error
}

var _ services.AttemptStore = (*AttemptRepository)(nil)

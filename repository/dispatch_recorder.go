package repository

import (
	"context"
	"errors"

	"salonreach-backend/models"
	"salonreach-backend/services"

	"gorm.io/gorm"
)

// DispatchRecorder is the unit of work behind a successful send: the
// contact attempt, its campaign link and the cooldown record are written in
// one transaction, so a half-recorded dispatch cannot exist.
type DispatchRecorder struct {
	db *gorm.DB
}

func NewDispatchRecorder(db *gorm.DB) *DispatchRecorder {
	return &DispatchRecorder{db: db}
}

func (r *DispatchRecorder) RecordDispatch(ctx context.Context, rec services.DispatchRecord) (*models.ContactAttempt, error) {
	var attempt models.ContactAttempt

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		campaign, err := ensureCampaign(tx, rec.Rule)
		if err != nil {
			return err
		}

		expiresAt := rec.Now.AddDate(0, 0, rec.TrackingDays)

		if rec.AttemptID != nil {
			// Promote the queued manual entry; status-conditional so a
			// concurrently cleared entry cannot be resurrected.
			res := tx.Model(&models.ContactAttempt{}).
				Where("id = ? AND status = ?", *rec.AttemptID, models.AttemptQueued).
				Updates(map[string]interface{}{
					"status":        models.AttemptPending,
					"campaign_id":   campaign.ID,
					"dispatched_at": rec.Now,
					"expires_at":    expiresAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return services.ErrAttemptNotOpen
			}
			if err := tx.First(&attempt, "id = ?", *rec.AttemptID).Error; err != nil {
				return err
			}
		} else {
			dispatchedAt := rec.Now
			attempt = models.ContactAttempt{
				SalonID:        rec.Rule.SalonID,
				CustomerID:     rec.Customer.ID,
				RuleID:         rec.Rule.ID,
				CampaignID:     &campaign.ID,
				Status:         models.AttemptPending,
				PrioritySource: rec.Source,
				DispatchedAt:   &dispatchedAt,
				ExpiresAt:      &expiresAt,
			}
			if err := tx.Create(&attempt).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return services.ErrDuplicateAttempt
				}
				return err
			}
		}

		link := models.CampaignLink{
			CampaignID:     campaign.ID,
			AttemptID:      attempt.ID,
			MessageSID:     rec.MessageSID,
			DeliveryStatus: models.DeliveryAccepted,
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}

		cooldown := models.CooldownRecord{
			SalonID:    rec.Rule.SalonID,
			RuleID:     rec.Rule.ID,
			RuleKind:   rec.Rule.TriggerKind,
			CustomerID: rec.Customer.ID,
			SentAt:     rec.Now,
		}
		return tx.Create(&cooldown).Error
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func ensureCampaign(tx *gorm.DB, rule *models.AutomationRule) (*models.Campaign, error) {
	var campaign models.Campaign
	err := tx.Where(models.Campaign{RuleID: rule.ID}).
		Attrs(models.Campaign{SalonID: rule.SalonID, Name: rule.Name}).
		FirstOrCreate(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

var _ services.DispatchRecorder = (*DispatchRecorder)(nil)

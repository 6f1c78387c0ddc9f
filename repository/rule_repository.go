package repository

import (
	"context"
	"errors"
	"time"

	"salonreach-backend/models"
	"salonreach-backend/services"
	"salonreach-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Enabled(ctx context.Context) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("created_at").Find(&rules).Error
	return rules, err
}

func (r *RuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ReserveSend is the atomic increment-and-check that keeps the send-limit
// ceilings hard under concurrency. The daily counter rolls over in the same
// statement when the stored date is stale.
func (r *RuleRepository) ReserveSend(ctx context.Context, ruleID uuid.UUID, day time.Time) error {
	day = utils.BeginningOfDay(day)
	res := r.db.WithContext(ctx).Exec(`
		UPDATE automation_rules
		SET total_sends_count = total_sends_count + 1,
		    daily_sends_count = CASE
		        WHEN daily_count_date IS NOT DISTINCT FROM ? THEN daily_sends_count + 1
		        ELSE 1
		    END,
		    daily_count_date = ?
		WHERE id = ?
		  AND deleted_at IS NULL
		  AND (max_total_sends = 0 OR total_sends_count < max_total_sends)
		  AND (max_daily_sends = 0
		       OR daily_count_date IS DISTINCT FROM ?
		       OR daily_sends_count < max_daily_sends)`,
		day, day, ruleID, day)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrSendQuotaExceeded
	}
	return nil
}

func (r *RuleRepository) ReleaseSend(ctx context.Context, ruleID uuid.UUID, day time.Time) error {
	day = utils.BeginningOfDay(day)
	return r.db.WithContext(ctx).Exec(`
		UPDATE automation_rules
		SET total_sends_count = GREATEST(total_sends_count - 1, 0),
		    daily_sends_count = CASE
		        WHEN daily_count_date IS NOT DISTINCT FROM ? THEN GREATEST(daily_sends_count - 1, 0)
		        ELSE daily_sends_count
		    END
		WHERE id = ? AND deleted_at IS NULL`,
		day, ruleID).Error
}

func (r *RuleRepository) RecordRun(ctx context.Context, ruleID uuid.UUID, at time.Time, status, errMsg string, skips map[string]int) error {
	histogram := models.JSONB{}
	for reason, count := range skips {
		histogram[reason] = count
	}
	return r.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]interface{}{
			"last_run_at":     at,
			"last_run_status": status,
			"last_run_error":  errMsg,
			"last_run_skips":  histogram,
		}).Error
}

var _ services.RuleStore = (*RuleRepository)(nil)

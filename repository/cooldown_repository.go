package repository

import (
	"context"
	"database/sql"

	"salonreach-backend/models"
	"salonreach-backend/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CooldownRepository struct {
	db *gorm.DB
}

func NewCooldownRepository(db *gorm.DB) *CooldownRepository {
	return &CooldownRepository{db: db}
}

// HistoryFor answers the two range queries the evaluator needs: most recent
// contact of this rule's kind, and most recent contact of any kind. Both hit
// the composite indexes on cooldown_records.
func (r *CooldownRepository) HistoryFor(ctx context.Context, rule *models.AutomationRule, customerID uuid.UUID) (services.CooldownHistory, error) {
	var history services.CooldownHistory

	var lastRule sql.NullTime
	err := r.db.WithContext(ctx).Raw(`
		SELECT MAX(sent_at) FROM cooldown_records
		WHERE rule_kind = ? AND customer_id = ?`,
		rule.TriggerKind, customerID).Scan(&lastRule).Error
	if err != nil {
		return history, err
	}
	if lastRule.Valid {
		t := lastRule.Time
		history.LastRuleContact = &t
	}

	var lastAny sql.NullTime
	err = r.db.WithContext(ctx).Raw(`
		SELECT MAX(sent_at) FROM cooldown_records
		WHERE customer_id = ?`,
		customerID).Scan(&lastAny).Error
	if err != nil {
		return history, err
	}
	if lastAny.Valid {
		t := lastAny.Time
		history.LastAnyContact = &t
	}

	return history, nil
}

var _ services.CooldownStore = (*CooldownRepository)(nil)

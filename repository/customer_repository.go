package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonreach-backend/models"
	"salonreach-backend/services"
	"salonreach-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerRepository implements the read-only attribute feed plus the
// single blacklist write the core performs.
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("customer %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) InactiveSince(ctx context.Context, salonID uuid.UUID, minDays int, riskClass string, now time.Time) ([]models.Customer, error) {
	cutoff := utils.BeginningOfDay(now).AddDate(0, 0, -minDays)
	q := r.db.WithContext(ctx).
		Where("salon_id = ? AND is_active = ? AND last_visit IS NOT NULL AND last_visit <= ?",
			salonID, true, cutoff)
	if riskClass != "" {
		q = q.Where("risk_class = ?", riskClass)
	}
	var customers []models.Customer
	err := q.Find(&customers).Error
	return customers, err
}

func (r *CustomerRepository) SingleVisitAged(ctx context.Context, salonID uuid.UUID, minDays int, now time.Time) ([]models.Customer, error) {
	cutoff := utils.BeginningOfDay(now).AddDate(0, 0, -minDays)
	var customers []models.Customer
	err := r.db.WithContext(ctx).
		Where("salon_id = ? AND is_active = ? AND total_visits = 1 AND last_visit IS NOT NULL AND last_visit <= ?",
			salonID, true, cutoff).
		Find(&customers).Error
	return customers, err
}

func (r *CustomerRepository) WalletAbove(ctx context.Context, salonID uuid.UUID, min float64) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.WithContext(ctx).
		Where("salon_id = ? AND is_active = ? AND wallet_balance >= ?", salonID, true, min).
		Find(&customers).Error
	return customers, err
}

// AnniversaryWithin matches customers whose anniversary falls in the next
// `days` days. Month-day comparison, year ignored; windows crossing the
// year boundary wrap with an OR.
func (r *CustomerRepository) AnniversaryWithin(ctx context.Context, salonID uuid.UUID, days int, now time.Time) ([]models.Customer, error) {
	start := now.Format("01-02")
	end := now.AddDate(0, 0, days).Format("01-02")

	var customers []models.Customer
	query := `
		SELECT * FROM customers
		WHERE salon_id = ? AND deleted_at IS NULL
		AND is_active = true
		AND anniversary IS NOT NULL
		AND ` + anniversaryRange(start, end)
	err := r.db.WithContext(ctx).Raw(query, salonID, start, end).Scan(&customers).Error
	return customers, err
}

func anniversaryRange(start, end string) string {
	if start <= end {
		return `TO_CHAR(anniversary, 'MM-DD') BETWEEN ? AND ?`
	}
	return `(TO_CHAR(anniversary, 'MM-DD') >= ? OR TO_CHAR(anniversary, 'MM-DD') <= ?)`
}

func (r *CustomerRepository) Blacklist(ctx context.Context, customerID uuid.UUID, reason string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]interface{}{
			"blacklisted":      true,
			"blacklist_reason": reason,
			"blacklisted_at":   now,
		}).Error
}

var _ services.CustomerFeed = (*CustomerRepository)(nil)
var _ services.CustomerWriter = (*CustomerRepository)(nil)

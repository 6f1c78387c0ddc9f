// controllers/rule.go
package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"salonreach-backend/config"
	"salonreach-backend/models"
	"salonreach-backend/services"
	"salonreach-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateRuleInput defines the expected JSON structure for creating a rule
type CreateRuleInput struct {
	Name              string     `json:"name" binding:"required"`
	TriggerKind       string     `json:"triggerKind" binding:"required"`
	TriggerParam      float64    `json:"triggerParam"`
	RiskClass         string     `json:"riskClass" binding:"omitempty,oneof=low medium high"`
	CooldownDays      int        `json:"cooldownDays" binding:"required"`
	ValidUntil        *time.Time `json:"validUntil"`
	MaxTotalSends     int        `json:"maxTotalSends"`
	MaxDailySends     int        `json:"maxDailySends"`
	SendWindowStart   string     `json:"sendWindowStart"` // "09:00"
	SendWindowEnd     string     `json:"sendWindowEnd"`   // "20:00"
	SendDays          []int      `json:"sendDays"`        // 0 = Sunday
	ExcludeRecentDays int        `json:"excludeRecentDays"`
	MinTotalSpent     float64    `json:"minTotalSpent"`
	WalletBalanceMax  *float64   `json:"walletBalanceMax"`
	CouponCode        string     `json:"couponCode"`
	CouponValue       float64    `json:"couponValue"`
	TrackingDays      *int       `json:"trackingDays"`
}

// UpdateRuleInput allows partial edits of limits, windows and cooldowns
type UpdateRuleInput struct {
	Name              *string    `json:"name"`
	TriggerParam      *float64   `json:"triggerParam"`
	RiskClass         *string    `json:"riskClass" binding:"omitempty,oneof=low medium high"`
	CooldownDays      *int       `json:"cooldownDays"`
	ValidUntil        *time.Time `json:"validUntil"`
	MaxTotalSends     *int       `json:"maxTotalSends"`
	MaxDailySends     *int       `json:"maxDailySends"`
	SendWindowStart   *string    `json:"sendWindowStart"`
	SendWindowEnd     *string    `json:"sendWindowEnd"`
	SendDays          []int      `json:"sendDays"`
	ExcludeRecentDays *int       `json:"excludeRecentDays"`
	MinTotalSpent     *float64   `json:"minTotalSpent"`
	WalletBalanceMax  *float64   `json:"walletBalanceMax"`
	CouponCode        *string    `json:"couponCode"`
	CouponValue       *float64   `json:"couponValue"`
	TrackingDays      *int       `json:"trackingDays"`
}

func parseClock(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func ruleJSON(rule *models.AutomationRule) gin.H {
	return gin.H{
		"id":                rule.ID,
		"name":              rule.Name,
		"enabled":           rule.Enabled,
		"triggerKind":       rule.TriggerKind,
		"triggerParam":      rule.TriggerParam,
		"riskClass":         rule.RiskClass,
		"cooldownDays":      rule.CooldownDays,
		"validUntil":        rule.ValidUntil,
		"maxTotalSends":     rule.MaxTotalSends,
		"totalSendsCount":   rule.TotalSendsCount,
		"maxDailySends":     rule.MaxDailySends,
		"dailySendsCount":   rule.DailySendsCount,
		"sendWindowStart":   fmt.Sprintf("%02d:%02d", rule.SendWindowStart/60, rule.SendWindowStart%60),
		"sendWindowEnd":     fmt.Sprintf("%02d:%02d", rule.SendWindowEnd/60, rule.SendWindowEnd%60),
		"sendDays":          utils.WeekdaysFromMask(rule.SendDays),
		"excludeRecentDays": rule.ExcludeRecentDays,
		"minTotalSpent":     rule.MinTotalSpent,
		"walletBalanceMax":  rule.WalletBalanceMax,
		"couponCode":        rule.CouponCode,
		"couponValue":       rule.CouponValue,
		"trackingDays":      rule.TrackingDays,
		"lastRunAt":         rule.LastRunAt,
		"lastRunStatus":     rule.LastRunStatus,
		"lastRunError":      rule.LastRunError,
		"lastRunSkips":      rule.LastRunSkips,
	}
}

// CreateRule creates a new automation rule. Inconsistent configurations are
// rejected here so they can never reach scheduling.
func CreateRule(c *gin.Context) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return
	}
	userID, exists := c.Get("userId")
	if !exists {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	var input CreateRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	windowStart, err := parseClock(input.SendWindowStart, 9*60)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	windowEnd, err := parseClock(input.SendWindowEnd, 20*60)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	sendDays := uint8(127)
	if len(input.SendDays) > 0 {
		sendDays = utils.WeekdayMask(input.SendDays)
	}

	rule := models.AutomationRule{
		ID:                uuid.New(),
		SalonID:           salonUUID,
		CreatedByUserID:   uuid.Must(uuid.Parse(userID.(string))),
		Name:              input.Name,
		Enabled:           true,
		TriggerKind:       input.TriggerKind,
		TriggerParam:      input.TriggerParam,
		RiskClass:         input.RiskClass,
		CooldownDays:      input.CooldownDays,
		ValidUntil:        input.ValidUntil,
		MaxTotalSends:     input.MaxTotalSends,
		MaxDailySends:     input.MaxDailySends,
		SendWindowStart:   windowStart,
		SendWindowEnd:     windowEnd,
		SendDays:          sendDays,
		ExcludeRecentDays: input.ExcludeRecentDays,
		MinTotalSpent:     input.MinTotalSpent,
		WalletBalanceMax:  input.WalletBalanceMax,
		CouponCode:        input.CouponCode,
		CouponValue:       input.CouponValue,
		TrackingDays:      input.TrackingDays,
		LastRunSkips:      models.JSONB{},
	}

	if err := services.ValidateRule(&rule); err != nil {
		var cfgErr *services.ConfigurationError
		if errors.As(err, &cfgErr) {
			utils.RespondWithError(c, http.StatusUnprocessableEntity, cfgErr.Error())
			return
		}
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := config.DB.Create(&rule).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create rule")
		return
	}

	c.JSON(http.StatusCreated, ruleJSON(&rule))
}

// GetRules retrieves all automation rules for the salon, including their
// last-run status and skip-reason histogram
func GetRules(c *gin.Context) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return
	}

	var rules []models.AutomationRule
	if err := config.DB.Where("salon_id = ?", salonUUID).Order("created_at").Find(&rules).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve rules")
		return
	}

	out := make([]gin.H, 0, len(rules))
	for i := range rules {
		out = append(out, ruleJSON(&rules[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetRule retrieves a specific rule by ID
func GetRule(c *gin.Context) {
	rule, ok := ruleFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ruleJSON(rule))
}

// UpdateRule edits limits, windows and cooldowns of an existing rule
func UpdateRule(c *gin.Context) {
	rule, ok := ruleFromPath(c)
	if !ok {
		return
	}

	var input UpdateRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if input.Name != nil {
		rule.Name = *input.Name
	}
	if input.TriggerParam != nil {
		rule.TriggerParam = *input.TriggerParam
	}
	if input.RiskClass != nil {
		rule.RiskClass = *input.RiskClass
	}
	if input.CooldownDays != nil {
		rule.CooldownDays = *input.CooldownDays
	}
	if input.ValidUntil != nil {
		rule.ValidUntil = input.ValidUntil
	}
	if input.MaxTotalSends != nil {
		rule.MaxTotalSends = *input.MaxTotalSends
	}
	if input.MaxDailySends != nil {
		rule.MaxDailySends = *input.MaxDailySends
	}
	if input.SendWindowStart != nil {
		minutes, err := parseClock(*input.SendWindowStart, rule.SendWindowStart)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		rule.SendWindowStart = minutes
	}
	if input.SendWindowEnd != nil {
		minutes, err := parseClock(*input.SendWindowEnd, rule.SendWindowEnd)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		rule.SendWindowEnd = minutes
	}
	if len(input.SendDays) > 0 {
		rule.SendDays = utils.WeekdayMask(input.SendDays)
	}
	if input.ExcludeRecentDays != nil {
		rule.ExcludeRecentDays = *input.ExcludeRecentDays
	}
	if input.MinTotalSpent != nil {
		rule.MinTotalSpent = *input.MinTotalSpent
	}
	if input.WalletBalanceMax != nil {
		rule.WalletBalanceMax = input.WalletBalanceMax
	}
	if input.CouponCode != nil {
		rule.CouponCode = *input.CouponCode
	}
	if input.CouponValue != nil {
		rule.CouponValue = *input.CouponValue
	}
	if input.TrackingDays != nil {
		rule.TrackingDays = input.TrackingDays
	}

	if err := services.ValidateRule(rule); err != nil {
		var cfgErr *services.ConfigurationError
		if errors.As(err, &cfgErr) {
			utils.RespondWithError(c, http.StatusUnprocessableEntity, cfgErr.Error())
			return
		}
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := config.DB.Save(rule).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update rule")
		return
	}

	c.JSON(http.StatusOK, ruleJSON(rule))
}

// SetRuleEnabled soft-enables or disables a rule. Rules are never deleted.
func SetRuleEnabled(c *gin.Context) {
	rule, ok := ruleFromPath(c)
	if !ok {
		return
	}

	var input struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if err := config.DB.Model(rule).Update("enabled", *input.Enabled).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update rule")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": rule.ID, "enabled": *input.Enabled})
}

func ruleFromPath(c *gin.Context) (*models.AutomationRule, bool) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return nil, false
	}

	ruleUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid rule ID format")
		return nil, false
	}

	var rule models.AutomationRule
	if err := config.DB.Where("salon_id = ? AND id = ?", salonUUID, ruleUUID).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Rule not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return nil, false
	}
	return &rule, true
}

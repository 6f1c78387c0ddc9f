// controllers/stats.go
package controllers

import (
	"net/http"

	"salonreach-backend/config"
	"salonreach-backend/utils"

	"github.com/gin-gonic/gin"
)

// RuleStats is the read-only aggregate the dashboard renders per rule.
type RuleStats struct {
	RuleID           string  `json:"ruleId"`
	RuleName         string  `json:"ruleName"`
	Enabled          bool    `json:"enabled"`
	Sent             int     `json:"sent"`
	Returned         int     `json:"returned"`
	Expired          int     `json:"expired"`
	Cleared          int     `json:"cleared"`
	ReturnRate       float64 `json:"returnRate"`
	RevenueRecovered float64 `json:"revenueRecovered"`
}

// GetAutomationStats computes per-rule sent/returned/expired counts, the
// return rate and recovered revenue from the contact tracking store.
func GetAutomationStats(c *gin.Context) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return
	}

	var stats []RuleStats
	err := config.DB.Raw(`
		SELECT
			r.id AS rule_id,
			r.name AS rule_name,
			r.enabled AS enabled,
			COUNT(a.id) FILTER (WHERE a.status IN ('pending', 'returned', 'expired')) AS sent,
			COUNT(a.id) FILTER (WHERE a.status = 'returned') AS returned,
			COUNT(a.id) FILTER (WHERE a.status = 'expired') AS expired,
			COUNT(a.id) FILTER (WHERE a.status = 'cleared') AS cleared,
			COALESCE(SUM(a.return_revenue) FILTER (WHERE a.status = 'returned'), 0) AS revenue_recovered
		FROM automation_rules r
		LEFT JOIN contact_attempts a
			ON a.rule_id = r.id AND a.deleted_at IS NULL
		WHERE r.salon_id = ? AND r.deleted_at IS NULL
		GROUP BY r.id, r.name, r.enabled
		ORDER BY r.created_at
	`, salonUUID).Scan(&stats).Error
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	for i := range stats {
		resolved := stats[i].Returned + stats[i].Expired
		if resolved > 0 {
			stats[i].ReturnRate = float64(stats[i].Returned) / float64(resolved)
		}
	}

	c.JSON(http.StatusOK, stats)
}

// GetRuleLastRun reports the last-run status and skip-reason histogram for
// one rule, for the admin surface.
func GetRuleLastRun(c *gin.Context) {
	rule, ok := ruleFromPath(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ruleId":        rule.ID,
		"lastRunAt":     rule.LastRunAt,
		"lastRunStatus": rule.LastRunStatus,
		"lastRunError":  rule.LastRunError,
		"skipReasons":   rule.LastRunSkips,
	})
}

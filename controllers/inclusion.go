// controllers/inclusion.go
package controllers

import (
	"errors"
	"net/http"

	"salonreach-backend/config"
	"salonreach-backend/models"
	"salonreach-backend/services"
	"salonreach-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnqueueInclusionInput requests a specific customer be included in a
// rule's next eligible batch. The bypass flag must be set here or never;
// it cannot be added after the fact.
type EnqueueInclusionInput struct {
	CustomerID         string `json:"customerId" binding:"required,uuid"`
	RuleID             string `json:"ruleId" binding:"required,uuid"`
	BypassRuleCooldown bool   `json:"bypassRuleCooldown"`
}

// EnqueueInclusion adds a manual inclusion to the priority queue
func EnqueueInclusion(c *gin.Context) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return
	}

	var input EnqueueInclusionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	customerUUID := uuid.MustParse(input.CustomerID)
	ruleUUID := uuid.MustParse(input.RuleID)

	var customer models.Customer
	if err := config.DB.Where("salon_id = ? AND id = ?", salonUUID, customerUUID).
		First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Customer not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	var rule models.AutomationRule
	if err := config.DB.Where("salon_id = ? AND id = ?", salonUUID, ruleUUID).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Rule not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	attempt := models.ContactAttempt{
		SalonID:            salonUUID,
		CustomerID:         customer.ID,
		RuleID:             rule.ID,
		BypassRuleCooldown: input.BypassRuleCooldown,
	}

	if err := attemptStore.CreateQueued(c.Request.Context(), &attempt); err != nil {
		if errors.Is(err, services.ErrDuplicateAttempt) {
			utils.RespondWithError(c, http.StatusConflict, "An open contact attempt already exists for this customer and rule")
			return
		}
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to enqueue inclusion")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         attempt.ID,
		"customerId": attempt.CustomerID,
		"ruleId":     attempt.RuleID,
		"status":     attempt.Status,
	})
}

// CancelInclusion cancels a queued manual inclusion that has not been
// dispatched yet
func CancelInclusion(c *gin.Context) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return
	}

	attemptUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid attempt ID format")
		return
	}

	var attempt models.ContactAttempt
	if err := config.DB.Where("salon_id = ? AND id = ?", salonUUID, attemptUUID).
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Inclusion not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	err = attemptStore.ClearQueued(c.Request.Context(), attempt.ID, services.ClearCancelled)
	if errors.Is(err, services.ErrAttemptNotOpen) {
		utils.RespondWithError(c, http.StatusConflict, "Inclusion has already been dispatched or resolved")
		return
	}
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to cancel inclusion")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Inclusion cancelled"})
}

// GetInclusions lists the salon's queued manual inclusions
func GetInclusions(c *gin.Context) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return
	}

	var attempts []models.ContactAttempt
	if err := config.DB.
		Where("salon_id = ? AND priority_source = ?", salonUUID, models.SourceManualInclusion).
		Order("created_at DESC").
		Limit(200).
		Find(&attempts).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve inclusions")
		return
	}

	c.JSON(http.StatusOK, attempts)
}

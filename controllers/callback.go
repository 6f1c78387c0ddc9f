// controllers/callback.go
package controllers

import (
	"net/http"
	"time"

	"salonreach-backend/config"
	"salonreach-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TwilioStatusCallback receives asynchronous delivery-status updates from
// the messaging gateway. Twilio posts form-encoded MessageSid/MessageStatus.
func TwilioStatusCallback(c *gin.Context) {
	sid := c.PostForm("MessageSid")
	status := c.PostForm("MessageStatus")
	if sid == "" || status == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "MessageSid and MessageStatus are required")
		return
	}

	if err := tracker.HandleDeliveryStatus(c.Request.Context(), sid, status); err != nil {
		config.Log.WithError(err).WithField("message_sid", sid).
			Error("delivery status callback failed")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to process delivery status")
		return
	}

	c.Status(http.StatusNoContent)
}

// ReturnSignalInput is posted by the visit pipeline when a qualifying
// visit is observed outside the invoice flow (e.g. an imported POS event).
type ReturnSignalInput struct {
	CustomerID string     `json:"customerId" binding:"required,uuid"`
	VisitAt    *time.Time `json:"visitAt"`
	Revenue    float64    `json:"revenue"`
}

// MarkReturn closes the customer's open contact attempts after a
// qualifying visit reported by an external process.
func MarkReturn(c *gin.Context) {
	var input ReturnSignalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	visitAt := time.Now()
	if input.VisitAt != nil {
		visitAt = *input.VisitAt
	}

	customerUUID := uuid.MustParse(input.CustomerID)
	if err := tracker.MarkReturned(c.Request.Context(), customerUUID, visitAt, input.Revenue); err != nil {
		config.Log.WithError(err).WithField("customer_id", customerUUID).
			Error("return signal processing failed")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to process return signal")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Return recorded"})
}

// controllers/invoice.go
package controllers

import (
	"errors"
	"net/http"
	"time"

	"salonreach-backend/config"
	"salonreach-backend/models"
	"salonreach-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateInvoiceInput defines the expected JSON structure for creating an invoice
type CreateInvoiceInput struct {
	CustomerID    string     `json:"customerId" binding:"required,uuid"`
	InvoiceNumber string     `json:"invoiceNumber" binding:"required"`
	InvoiceDate   *time.Time `json:"invoiceDate"`
	Total         float64    `json:"total" binding:"required"`
	PaymentMethod string     `json:"paymentMethod"`
	Notes         string     `json:"notes"`
}

// CreateInvoice records a completed visit. Besides updating the customer's
// visit stats, this is the return-detection signal: any open contact
// attempt for the customer is closed as returned with the invoice revenue.
func CreateInvoice(c *gin.Context) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return
	}
	userID, exists := c.Get("userId")
	if !exists {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	var input CreateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	customerUUID := uuid.MustParse(input.CustomerID)

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

	invoiceDate := time.Now()
	if input.InvoiceDate != nil {
		invoiceDate = *input.InvoiceDate
	}

	invoice := models.Invoice{
		ID:              uuid.New(),
		SalonID:         salonUUID,
		CreatedByUserID: uuid.Must(uuid.Parse(userID.(string))),
		InvoiceNumber:   input.InvoiceNumber,
		CustomerID:      customer.ID,
		InvoiceDate:     invoiceDate,
		Total:           input.Total,
		PaymentMethod:   input.PaymentMethod,
		Notes:           input.Notes,
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}
		return tx.Model(&customer).Updates(map[string]interface{}{
			"total_visits": gorm.Expr("total_visits + 1"),
			"total_spent":  gorm.Expr("total_spent + ?", invoice.Total),
			"last_visit":   invoiceDate,
		}).Error
	})
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create invoice")
		return
	}

	if err := tracker.MarkReturned(c.Request.Context(), customer.ID, invoiceDate, invoice.Total); err != nil {
		// The invoice is already committed; the tracking miss is logged
		// and surfaced, not rolled back.
		config.Log.WithError(err).WithField("customer_id", customer.ID).
			Error("return detection failed after invoice creation")
	}

	c.JSON(http.StatusCreated, invoice)
}

// GetInvoices retrieves the salon's invoices, newest first
func GetInvoices(c *gin.Context) {
	salonUUID, ok := salonFromContext(c)
	if !ok {
		return
	}

	var invoices []models.Invoice
	if err := config.DB.Where("salon_id = ?", salonUUID).
		Order("invoice_date DESC").
		Limit(200).
		Find(&invoices).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve invoices")
		return
	}

	c.JSON(http.StatusOK, invoices)
}

package controllers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models"
)

func ListRecurringDonations(c *gin.Context) { list(c, models.ListRecurringDonations) }

func CreateRecurringDonation(c *gin.Context) { create(c, models.CreateRecurringDonation) }

func GetRecurringDonation(c *gin.Context) { getById(c, models.GetRecurringDonation) }

func UpdateRecurringDonation(c *gin.Context) { update(c, models.UpdateRecurringDonation) }

func DeleteRecurringDonation(c *gin.Context) { deleteById(c, models.DeleteRecurringDonation) }

// ProcessRecurringDonations runs every schedule due now; the scheduler does the same hourly.
func ProcessRecurringDonations(c *gin.Context) {
	result, err := models.ProcessDueRecurringDonations(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func recurringTransition(status models.RecurringStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		transition(c, func(ctx context.Context, id int) (*models.RecurringDonation, error) {
			return models.SetRecurringStatus(ctx, id, status)
		})
	}
}

package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	mw "github.com/mmdatafocus/church_backend/middlewares"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/models/reports"
)

func ListDonations(c *gin.Context) {
	var filter models.DonationFilter
	if !bindQuery(c, &filter) {
		return
	}
	ctx := c.Request.Context()
	page, err := models.ListDonations(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := mw.HydrateDonations(ctx, page.Items); err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

// ExportDonations streams the filtered donations as an xlsx workbook.
func ExportDonations(c *gin.Context) {
	var filter models.DonationFilter
	if !bindQuery(c, &filter) {
		return
	}
	data, err := reports.ExportDonations(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	sendAttachment(c, fmt.Sprintf("donations-%s.xlsx", time.Now().Format("20060102")), reports.ExcelContentType, data)
}

func CreateDonation(c *gin.Context) { create(c, models.CreateDonation) }

func GetDonation(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	donation, err := models.GetDonation(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := mw.HydrateDonations(ctx, []*models.Donation{donation}); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, donation)
}

func UpdateDonation(c *gin.Context) { update(c, models.UpdateDonation) }

func DeleteDonation(c *gin.Context) { deleteById(c, models.DeleteDonation) }

func sendAttachment(c *gin.Context, filename string, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

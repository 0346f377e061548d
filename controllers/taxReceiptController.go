package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models"
)

func ListTaxReceipts(c *gin.Context) { list(c, models.ListTaxReceipts) }

func GenerateTaxReceipt(c *gin.Context) {
	var input models.NewTaxReceipt
	if !bindJSON(c, &input) {
		return
	}
	receipt, err := models.GenerateTaxReceipt(c.Request.Context(), input.MemberId, input.TaxYear)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, receipt)
}

type annualReceiptsRequest struct {
	TaxYear int `json:"tax_year" binding:"omitempty,gte=1900,max=9999"`
}

// GenerateAnnualTaxReceipts issues receipts for a whole year, defaulting to last year.
func GenerateAnnualTaxReceipts(c *gin.Context) {
	var req annualReceiptsRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.TaxYear == 0 {
		req.TaxYear = time.Now().Year() - 1
	}
	result, err := models.GenerateAnnualTaxReceipts(c.Request.Context(), req.TaxYear)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func GetTaxReceipt(c *gin.Context) { getById(c, models.GetTaxReceipt) }

func DownloadTaxReceiptPdf(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	data, receipt, err := models.RenderTaxReceiptPdf(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	sendAttachment(c, receipt.ReceiptNumber+".pdf", "application/pdf", data)
}

func SendTaxReceipt(c *gin.Context) { transition(c, models.SendTaxReceipt) }

type voidReceiptRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

func VoidTaxReceipt(c *gin.Context) {
	id, ok := paramId(c, "id")
	if !ok {
		return
	}
	var req voidReceiptRequest
	if !bindJSON(c, &req) {
		return
	}
	receipt, err := models.VoidTaxReceipt(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, receipt)
}

package controllers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/church_backend/models/reports"
	"github.com/mmdatafocus/church_backend/utils"
)

// dateRange reads ?from=&to= as YYYY-MM-DD; both are optional.
func dateRange(c *gin.Context) (reports.DateRange, bool) {
	var r reports.DateRange
	for name, dst := range map[string]*time.Time{"from": &r.From, "to": &r.To} {
		t, err := utils.ParseDateParam(c.Query(name))
		if err != nil {
			respondError(c, utils.NewValidationError(name, "must be a date in YYYY-MM-DD format"))
			return r, false
		}
		if t != nil {
			*dst = *t
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		respondError(c, utils.NewValidationError("to", "must not be before from"))
		return r, false
	}
	return r, true
}

func yearParam(c *gin.Context, name string) (int, bool) {
	year := queryInt(c, name, time.Now().Year())
	if year < 1900 || year > 9999 {
		respondError(c, utils.NewValidationError(name, "must be a four digit year"))
		return 0, false
	}
	return year, true
}

func FinancialSummaryReport(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	result, err := reports.GetFinancialSummary(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func ExportFinancialSummary(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	data, err := reports.ExportFinancialSummary(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	sendAttachment(c, fmt.Sprintf("financial-summary-%s.xlsx", time.Now().Format("20060102")), reports.ExcelContentType, data)
}

func MonthlyDonationsReport(c *gin.Context) {
	year, ok := yearParam(c, "year")
	if !ok {
		return
	}
	result, err := reports.GetMonthlyDonations(c.Request.Context(), year)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func DonationsByCategoryReport(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	result, err := reports.GetDonationsByCategory(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func TopDonorsReport(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	result, err := reports.GetTopDonors(c.Request.Context(), r, queryInt(c, "limit", 10))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func BudgetUtilizationReport(c *gin.Context) {
	fy, ok := yearParam(c, "fiscal_year")
	if !ok {
		return
	}
	result, err := reports.GetBudgetUtilization(c.Request.Context(), fy)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func BudgetVarianceReport(c *gin.Context) {
	fy, ok := yearParam(c, "fiscal_year")
	if !ok {
		return
	}
	result, err := reports.GetBudgetVariance(c.Request.Context(), fy)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func CampaignProgressReport(c *gin.Context) {
	result, err := reports.GetCampaignProgress(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func MemberEngagementReport(c *gin.Context) {
	result, err := reports.GetMemberEngagement(c.Request.Context(), queryInt(c, "limit", 25))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

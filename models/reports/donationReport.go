package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/shopspring/decimal"
)

type MonthlyDonationRow struct {
	Month int             `json:"month"`
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}

type MonthlyDonationsResponse struct {
	Year   int                   `json:"year"`
	Total  decimal.Decimal       `json:"total"`
	Months []*MonthlyDonationRow `json:"months"`
}

type donationPoint struct {
	DonationDate time.Time
	Amount       decimal.Decimal
}

// GetMonthlyDonations always returns twelve rows; months are bucketed in Go so the query stays portable.
func GetMonthlyDonations(ctx context.Context, year int) (*MonthlyDonationsResponse, error) {
	return cached(ctx, "MonthlyDonations", year, func(ctx context.Context) (*MonthlyDonationsResponse, error) {
		from, to := utils.YearRange(year)
		var points []donationPoint
		err := config.GetDB().WithContext(ctx).Model(&models.Donation{}).
			Select("donation_date, amount").
			Where("status = ? AND donation_date >= ? AND donation_date < ?", models.DonationStatusCompleted, from, to).
			Scan(&points).Error
		if err != nil {
			return nil, err
		}

		resp := &MonthlyDonationsResponse{Year: year, Total: decimal.Zero}
		for m := 1; m <= 12; m++ {
			resp.Months = append(resp.Months, &MonthlyDonationRow{Month: m, Total: decimal.Zero})
		}
		for _, p := range points {
			row := resp.Months[int(p.DonationDate.Month())-1]
			row.Total = row.Total.Add(p.Amount)
			row.Count++
			resp.Total = resp.Total.Add(p.Amount)
		}
		return resp, nil
	})
}

func GetDonationsByCategory(ctx context.Context, r DateRange) ([]*CategoryTotal, error) {
	r = r.normalize()
	return cached(ctx, "DonationsByCategory", r, func(ctx context.Context) ([]*CategoryTotal, error) {
		return donationCategoryTotals(ctx, r)
	})
}

type TopDonorRow struct {
	MemberId int             `json:"member_id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Total    decimal.Decimal `json:"total"`
	Count    int64           `json:"count"`
}

const defaultTopDonors = 10

// GetTopDonors ranks members by completed giving; anonymous donations are excluded.
func GetTopDonors(ctx context.Context, r DateRange, limit int) ([]*TopDonorRow, error) {
	r = r.normalize()
	if limit <= 0 || limit > 100 {
		limit = defaultTopDonors
	}
	params := struct {
		DateRange
		Limit int `json:"limit"`
	}{r, limit}

	return cached(ctx, "TopDonors", params, func(ctx context.Context) ([]*TopDonorRow, error) {
		from, to := r.bounds()
		var rows []*TopDonorRow
		err := config.GetDB().WithContext(ctx).Model(&models.Donation{}).
			Select("member_id, SUM(amount) AS total, COUNT(*) AS count").
			Where("status = ? AND member_id IS NOT NULL AND donation_date >= ? AND donation_date < ?",
				models.DonationStatusCompleted, from, to).
			Group("member_id").
			Order("total DESC, member_id").
			Limit(limit).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}

		ids := make([]int, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.MemberId)
		}
		members, err := models.GetMembersByIds(ctx, ids)
		if err != nil {
			return nil, err
		}
		byId := make(map[int]*models.Member, len(members))
		for _, m := range members {
			byId[m.ID] = m
		}
		for _, row := range rows {
			if m, ok := byId[row.MemberId]; ok {
				row.Name = m.FullName()
				row.Email = m.EmailAddress()
			}
		}
		return rows, nil
	})
}

package reports

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmdatafocus/church_backend/models"
	"github.com/xuri/excelize/v2"
)

const ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func writeRow(f *excelize.File, sheet string, rowNo int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportDonations writes one row per donation matching filter.
func ExportDonations(ctx context.Context, filter models.DonationFilter) ([]byte, error) {
	donations, err := models.AllDonations(ctx, filter)
	if err != nil {
		return nil, err
	}

	var memberIds []int
	for _, d := range donations {
		if d.MemberId != nil {
			memberIds = append(memberIds, *d.MemberId)
		}
	}
	names := make(map[int]string)
	if len(memberIds) > 0 {
		members, err := models.GetMembersByIds(ctx, memberIds)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			names[m.ID] = m.FullName()
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Donations"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, sheet, 1, "ID", "Date", "Member", "Category", "Payment Method", "Status", "Amount", "Reference", "Tax Deductible"); err != nil {
		return nil, err
	}
	for i, d := range donations {
		member := "Anonymous"
		if d.MemberId != nil {
			member = names[*d.MemberId]
		}
		if err := writeRow(f, sheet, i+2,
			d.ID,
			d.DonationDate.Format("2006-01-02"),
			member,
			string(d.Category),
			string(d.PaymentMethod),
			string(d.Status),
			d.Amount.InexactFloat64(),
			d.ReferenceNumber,
			d.IsTaxDeductible,
		); err != nil {
			return nil, err
		}
	}
	return workbookBytes(f)
}

// ExportFinancialSummary writes a Summary sheet and a By Category sheet.
func ExportFinancialSummary(ctx context.Context, r DateRange) ([]byte, error) {
	summary, err := GetFinancialSummary(ctx, r)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	const summarySheet, categorySheet = "Summary", "By Category"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(categorySheet); err != nil {
		return nil, err
	}

	rows := [][]interface{}{
		{"From", summary.From.Format("2006-01-02")},
		{"To", summary.To.Format("2006-01-02")},
		{"Total Donations", summary.TotalDonations.InexactFloat64()},
		{"Donation Count", summary.DonationCount},
		{"Total Expenses", summary.TotalExpenses.InexactFloat64()},
		{"Expense Count", summary.ExpenseCount},
		{"Net", summary.Net.InexactFloat64()},
	}
	for i, row := range rows {
		if err := writeRow(f, summarySheet, i+1, row...); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, categorySheet, 1, "Type", "Category", "Count", "Total"); err != nil {
		return nil, err
	}
	rowNo := 2
	for _, group := range []struct {
		kind string
		rows []*CategoryTotal
	}{{"Donation", summary.DonationsByCategory}, {"Expense", summary.ExpensesByCategory}} {
		for _, c := range group.rows {
			if err := writeRow(f, categorySheet, rowNo, group.kind, c.Category, c.Count, c.Total.InexactFloat64()); err != nil {
				return nil, fmt.Errorf("write %s row: %w", group.kind, err)
			}
			rowNo++
		}
	}
	return workbookBytes(f)
}

package utils

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

type ReceiptLine struct {
	Date     time.Time
	Category string
	Amount   decimal.Decimal
}

// ReceiptDocument is everything printed on a year-end giving statement.
type ReceiptDocument struct {
	ChurchName    string
	ChurchAddress string
	ChurchTaxId   string
	ReceiptNumber string
	TaxYear       int
	IssuedAt      time.Time
	DonorName     string
	DonorAddress  string
	Lines         []ReceiptLine
	Total         decimal.Decimal
	Void          bool
}

func RenderReceiptPdf(doc ReceiptDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Tax receipt "+doc.ReceiptNumber, true)
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, doc.ChurchName, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if doc.ChurchAddress != "" {
		pdf.MultiCell(0, 5, doc.ChurchAddress, "", "L", false)
	}
	if doc.ChurchTaxId != "" {
		pdf.CellFormat(0, 5, "Tax ID: "+doc.ChurchTaxId, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 7, fmt.Sprintf("Official Donation Receipt for %d", doc.TaxYear), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Receipt number: "+doc.ReceiptNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Issued: "+doc.IssuedAt.Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 5, "Donor", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, doc.DonorName, "", 1, "L", false, 0, "")
	if doc.DonorAddress != "" {
		pdf.MultiCell(0, 5, doc.DonorAddress, "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(40, 7, "Date", "1", 0, "L", true, 0, "")
	pdf.CellFormat(90, 7, "Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(44, 7, "Amount", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range doc.Lines {
		pdf.CellFormat(40, 6, line.Date.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(90, 6, line.Category, "1", 0, "L", false, 0, "")
		pdf.CellFormat(44, 6, line.Amount.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(130, 7, "Total eligible amount", "1", 0, "R", false, 0, "")
	pdf.CellFormat(44, 7, doc.Total.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "No goods or services were provided in exchange for these contributions.", "", "L", false)
	if doc.Void {
		pdf.SetFont("Helvetica", "B", 28)
		pdf.SetTextColor(200, 0, 0)
		pdf.Ln(10)
		pdf.CellFormat(0, 12, "VOID", "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

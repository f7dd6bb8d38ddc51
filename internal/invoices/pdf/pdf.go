// Package pdf renders invoices as A4 PDF documents.
package pdf

import (
	"bytes"
	"fmt"

	"driveo/pkg/model"

	"github.com/go-pdf/fpdf"
)

const (
	pageWidth = 210.0
	margin    = 15.0
	lineH     = 6.0
)

// Renderer produces byte-identical output for the same invoice: the document
// dates come from IssuedAt and the catalog is sorted.
type Renderer struct {
	CompanyName    string
	CompanyAddress string
}

func NewRenderer(companyName, companyAddress string) *Renderer {
	return &Renderer{CompanyName: companyName, CompanyAddress: companyAddress}
}

func (r *Renderer) Render(inv *model.Invoice) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCatalogSort(true)
	doc.SetCreationDate(inv.IssuedAt)
	doc.SetModificationDate(inv.IssuedAt)
	doc.SetTitle("Invoice "+inv.InvoiceNumber, true)
	doc.SetAuthor(r.CompanyName, true)
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(true, margin)
	doc.AddPage()

	tr := doc.UnicodeTranslatorFromDescriptor("")
	contentW := pageWidth - 2*margin

	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(contentW/2, 10, tr(r.CompanyName), "", 0, "L", false, 0, "")
	doc.CellFormat(contentW/2, 10, "INVOICE", "", 1, "R", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	if r.CompanyAddress != "" {
		doc.MultiCell(contentW/2, 5, tr(r.CompanyAddress), "", "L", false)
	}
	doc.Ln(4)

	meta := [][2]string{
		{"Invoice number", inv.InvoiceNumber},
		{"Issued", inv.IssuedAt.UTC().Format("02 Jan 2006")},
		{"Booking", inv.BookingNumber},
	}
	if inv.PaymentReference != "" {
		meta = append(meta, [2]string{"Payment reference", inv.PaymentReference})
	}
	for _, row := range meta {
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(40, lineH, row[0], "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(contentW-40, lineH, tr(row[1]), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(contentW, lineH, "Billed to", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(contentW, lineH, tr(inv.CustomerName), "", 1, "L", false, 0, "")
	doc.CellFormat(contentW, lineH, tr(inv.CustomerEmail), "", 1, "L", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(contentW, lineH, "Rental", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	rental := [][2]string{
		{"Vehicle", fmt.Sprintf("%s (%s)", inv.VehicleName, inv.RegistrationNumber)},
		{"Pickup", fmt.Sprintf("%s, %s", inv.PickupDate.UTC().Format("02 Jan 2006 15:04 MST"), inv.PickupLocation)},
		{"Drop-off", fmt.Sprintf("%s, %s", inv.DropoffDate.UTC().Format("02 Jan 2006 15:04 MST"), inv.DropoffLocation)},
	}
	for _, row := range rental {
		doc.CellFormat(30, lineH, row[0], "", 0, "L", false, 0, "")
		doc.CellFormat(contentW-30, lineH, tr(row[1]), "", 1, "L", false, 0, "")
	}
	doc.Ln(6)

	cols := []float64{contentW - 90, 20, 35, 35}
	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(235, 235, 235)
	for i, h := range []string{"Description", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		doc.CellFormat(cols[i], 8, h, "1", 0, align, true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 10)
	for _, item := range inv.Items {
		doc.CellFormat(cols[0], 7, tr(item.Description), "1", 0, "L", false, 0, "")
		doc.CellFormat(cols[1], 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		doc.CellFormat(cols[2], 7, money(item.UnitPrice), "1", 0, "R", false, 0, "")
		doc.CellFormat(cols[3], 7, money(item.Amount), "1", 1, "R", false, 0, "")
	}

	labelW := cols[0] + cols[1] + cols[2]
	totals := [][2]string{
		{"Subtotal", money(inv.Subtotal)},
		{fmt.Sprintf("Tax (%.0f%%)", inv.TaxRate*100), money(inv.Tax)},
		{"Total " + inv.Currency, money(inv.Total)},
	}
	for i, row := range totals {
		if i == len(totals)-1 {
			doc.SetFont("Helvetica", "B", 11)
		}
		doc.CellFormat(labelW, 7, row[0], "", 0, "R", false, 0, "")
		doc.CellFormat(cols[3], 7, row[1], "1", 1, "R", false, 0, "")
	}

	doc.Ln(10)
	doc.SetFont("Helvetica", "I", 9)
	doc.CellFormat(contentW, 5, tr("Thank you for renting with "+r.CompanyName+"."), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

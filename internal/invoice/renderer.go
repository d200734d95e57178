package invoice

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/safar/go-storefront/internal/models"
)

const unknownProduct = "(Unknown)"

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Product Name", 52, "L"},
	{"Quantity", 20, "R"},
	{"Date", 24, "L"},
	{"Address", 42, "L"},
	{"Status", 26, "L"},
	{"Total Price", 26, "R"},
}

// PDFRenderer lays out an order invoice as a single-table A4 document.
type PDFRenderer struct {
	now func() time.Time
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{now: time.Now}
}

func (r *PDFRenderer) Render(inv *models.Invoice) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("render invoice: nil invoice")
	}

	issuedAt := inv.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = r.now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetCreationDate(issuedAt)
	pdf.SetTitle("Invoice "+inv.OrderID.String(), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 10, "Generated on "+issuedAt.Format("02.01.2006"), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Invoice for %s %s", inv.FirstName, inv.LastName)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, tr("Email: "+inv.User.Email), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Order: "+inv.OrderID.String(), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for _, col := range columns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range invoiceRows(inv) {
		for i, col := range columns {
			pdf.CellFormat(col.width, 7, tr(row[i]), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}

	return buf.Bytes(), nil
}

// invoiceRows joins each purchase to its delivery and product. Missing joins render as
// placeholders rather than failing the document.
func invoiceRows(inv *models.Invoice) [][]string {
	deliveries := make(map[int64]models.Delivery, len(inv.Deliveries))
	for _, d := range inv.Deliveries {
		deliveries[d.PurchaseID] = d
	}
	products := make(map[int64]string, len(inv.Products))
	for _, p := range inv.Products {
		products[p.ID] = p.Name
	}

	rows := make([][]string, 0, len(inv.Purchases))
	for _, purchase := range inv.Purchases {
		name, ok := products[purchase.ProductID]
		if !ok {
			name = unknownProduct
		}

		address, status, total := "-", "-", "-"
		if d, ok := deliveries[purchase.ID]; ok {
			address = d.DeliveryAddress
			status = d.Status.String()
			total = "$" + d.TotalPrice.StringFixed(2)
		}

		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d", purchase.Quantity),
			purchase.Date.Format("2006-01-02"),
			address,
			status,
			total,
		})
	}

	return rows
}

package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/models"
)

func sampleInvoice() *models.Invoice {
	date := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	return &models.Invoice{
		OrderID:   uuid.MustParse("5f0c7c8e-3a43-4c8e-9a57-2d1f2c9a1b10"),
		User:      models.User{ID: 1, Email: "ada@example.com", Name: "Ada"},
		FirstName: "Ada",
		LastName:  "Lovelace",
		Purchases: []models.Purchase{
			{ID: 10, ProductID: 100, Quantity: 2, Date: date},
			{ID: 11, ProductID: 999, Quantity: 1, Date: date},
		},
		Deliveries: []models.Delivery{
			{PurchaseID: 10, DeliveryAddress: "1 Analytical St", Status: models.DeliveryStatusProcessing, TotalPrice: decimal.RequireFromString("20")},
		},
		Products: []models.Product{{ID: 100, Name: "Keyboard"}},
		IssuedAt: date,
	}
}

func TestRenderProducesPDF(t *testing.T) {
	out, err := NewPDFRenderer().Render(sampleInvoice())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderRejectsNil(t *testing.T) {
	_, err := NewPDFRenderer().Render(nil)
	assert.Error(t, err)
}

func TestInvoiceRows(t *testing.T) {
	rows := invoiceRows(sampleInvoice())
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"Keyboard", "2", "2024-05-02", "1 Analytical St", "Processing", "$20.00"}, rows[0])
	assert.Equal(t, []string{unknownProduct, "1", "2024-05-02", "-", "-", "-"}, rows[1])
}

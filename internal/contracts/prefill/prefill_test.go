package prefill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-contracts/internal/contracts/fieldmap"
	"home-contracts/internal/models"
)

func testOrder() models.Order {
	return models.Order{
		ID: "ORD-1042",
		Buyer: models.Party{
			Name:  "Ana Whitfield",
			Email: "ana@example.com",
			Phone: "+1 555 010 7788",
			MailingAddress: models.Address{
				Line1: "12 Pine Hollow Rd",
				City:  "Boise",
				State: "ID",
				Zip:   "83702",
			},
		},
		ModelDescription: "Cascade 28x56 3BR/2BA",
		DeliveryAddress: models.Address{
			Line1: "881 County Road 12",
			City:  "Nampa",
			State: "ID",
			Zip:   "83651",
		},
		Pricing: models.Pricing{
			BasePriceCents:   12450000,
			OptionsCents:     873500,
			DeliveryFeeCents: 450000,
			TaxCents:         825900,
			TotalCents:       14599400,
		},
		Jurisdiction: "ID",
		OrderDate:    time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuild_FieldFidelity(t *testing.T) {
	// Every emitted key must exist in the pack's field map as a read-only
	// entry; editable names must never appear.
	for _, pack := range models.AllPacks() {
		t.Run(string(pack), func(t *testing.T) {
			fields := Build(pack, testOrder())
			require.NotEmpty(t, fields)

			readOnly := map[string]bool{}
			editable := map[string]bool{}
			for _, e := range fieldmap.FieldsFor(pack) {
				if e.Editable {
					editable[e.Name] = true
				} else {
					readOnly[e.Name] = true
				}
			}

			for name := range fields {
				assert.True(t, readOnly[name], "key %q is not a read-only field of %s", name, pack)
				assert.False(t, editable[name], "editable field %q leaked into prefill for %s", name, pack)
			}

			// And every read-only entry gets a key, even when empty.
			assert.Len(t, fields, len(readOnly))
		})
	}
}

func TestBuild_CurrencyFormatting(t *testing.T) {
	fields := Build(models.PackAgreement, testOrder())

	assert.Equal(t, "124500.00", fields[fieldmap.FieldBasePrice])
	assert.Equal(t, "8735.00", fields[fieldmap.FieldOptionsTotal])
	assert.Equal(t, "4500.00", fields[fieldmap.FieldDeliveryFee])
	assert.Equal(t, "8259.00", fields[fieldmap.FieldTaxes])
	assert.Equal(t, "145994.00", fields[fieldmap.FieldTotalPrice])
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{99, "0.99"},
		{100, "1.00"},
		{149999, "1499.99"},
		{-2550, "-25.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCents(tt.cents))
	}
}

func TestBuild_AddressConcatenation(t *testing.T) {
	order := testOrder()
	fields := Build(models.PackAgreement, order)
	assert.Equal(t, "12 Pine Hollow Rd, Boise, ID, 83702", fields[fieldmap.FieldBuyerAddress])

	order.Buyer.MailingAddress.Line2 = "Unit 4"
	fields = Build(models.PackAgreement, order)
	assert.Equal(t, "12 Pine Hollow Rd, Unit 4, Boise, ID, 83702", fields[fieldmap.FieldBuyerAddress])
}

func TestBuild_MissingCoBuyerDefaultsToEmpty(t *testing.T) {
	order := testOrder()
	order.CoBuyer = nil

	fields := Build(models.PackAgreement, order)

	val, ok := fields[fieldmap.FieldCoBuyerName]
	require.True(t, ok, "cobuyer key must be present even without a co-buyer")
	assert.Equal(t, "", val)
	assert.Equal(t, "", fields[fieldmap.FieldCoBuyerEmail])
}

func TestBuild_WithCoBuyer(t *testing.T) {
	order := testOrder()
	order.CoBuyer = &models.Party{Name: "Sam Whitfield", Email: "sam@example.com"}

	fields := Build(models.PackAgreement, order)
	assert.Equal(t, "Sam Whitfield", fields[fieldmap.FieldCoBuyerName])
	assert.Equal(t, "sam@example.com", fields[fieldmap.FieldCoBuyerEmail])
}

func TestBuild_Deterministic(t *testing.T) {
	order := testOrder()
	for _, pack := range models.AllPacks() {
		first := Build(pack, order)
		second := Build(pack, order)
		assert.Equal(t, first, second, "pack %s prefill is not deterministic", pack)
	}
}

func TestBuild_OrderDateFormatting(t *testing.T) {
	fields := Build(models.PackAgreement, testOrder())
	assert.Equal(t, "June 14, 2025", fields[fieldmap.FieldOrderDate])

	blank := testOrder()
	blank.OrderDate = time.Time{}
	fields = Build(models.PackAgreement, blank)
	assert.Equal(t, "", fields[fieldmap.FieldOrderDate])
}

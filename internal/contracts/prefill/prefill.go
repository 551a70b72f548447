// Package prefill converts an order's buyer/model/pricing data into the
// flat field map sent with a submission. Only read-only fields are emitted;
// editable fields stay blank for the signer.
package prefill

import (
	"fmt"

	"home-contracts/internal/contracts/fieldmap"
	"home-contracts/internal/models"
)

// Build resolves a value for every read-only field of the pack. Missing
// optional data (no co-buyer, no phone) produces an empty string rather
// than a dropped key, so the provider renders a blank instead of the raw
// placeholder. Deterministic: no randomness, no wall-clock values beyond
// the order's own dated fields.
func Build(pack models.PackType, order models.Order) map[string]string {
	out := make(map[string]string)
	for _, entry := range fieldmap.ReadOnlyFor(pack) {
		out[entry.Name] = resolve(entry.Name, order)
	}
	return out
}

func resolve(field string, order models.Order) string {
	switch field {
	case fieldmap.FieldOrderID:
		return order.ID
	case fieldmap.FieldOrderDate:
		if order.OrderDate.IsZero() {
			return ""
		}
		return order.OrderDate.Format("January 2, 2006")
	case fieldmap.FieldBuyerName:
		return order.Buyer.Name
	case fieldmap.FieldBuyerEmail:
		return order.Buyer.Email
	case fieldmap.FieldBuyerPhone:
		return order.Buyer.Phone
	case fieldmap.FieldBuyerAddress:
		return order.Buyer.MailingAddress.Oneline()
	case fieldmap.FieldCoBuyerName:
		if order.CoBuyer == nil {
			return ""
		}
		return order.CoBuyer.Name
	case fieldmap.FieldCoBuyerEmail:
		if order.CoBuyer == nil {
			return ""
		}
		return order.CoBuyer.Email
	case fieldmap.FieldModelDescription:
		return order.ModelDescription
	case fieldmap.FieldDeliveryAddress:
		return order.DeliveryAddress.Oneline()
	case fieldmap.FieldJurisdiction:
		return order.Jurisdiction
	case fieldmap.FieldBasePrice:
		return FormatCents(order.Pricing.BasePriceCents)
	case fieldmap.FieldOptionsTotal:
		return FormatCents(order.Pricing.OptionsCents)
	case fieldmap.FieldDeliveryFee:
		return FormatCents(order.Pricing.DeliveryFeeCents)
	case fieldmap.FieldTaxes:
		return FormatCents(order.Pricing.TaxCents)
	case fieldmap.FieldTotalPrice:
		return FormatCents(order.Pricing.TotalCents)
	}
	return ""
}

// FormatCents renders integer minor-currency units as a fixed-point decimal
// string ("149999" -> "1499.99"). Negative amounts keep the sign on the
// whole value.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Package fieldmap is the single source of truth for the per-pack document
// fields. The prefill builder and the template bootstrap both read from it,
// so field names cannot drift between the two.
package fieldmap

import "home-contracts/internal/models"

// Entry maps one named template field to the signing role that owns it and
// whether the signer may edit it. Read-only fields are populated from order
// data and locked; editable fields stay blank for the signer.
type Entry struct {
	Name     string
	Role     models.SubmitterRole
	Editable bool
}

// Common read-only field names shared by every pack.
const (
	FieldOrderID          = "order_id"
	FieldOrderDate        = "order_date"
	FieldBuyerName        = "buyer_name"
	FieldBuyerEmail       = "buyer_email"
	FieldBuyerPhone       = "buyer_phone"
	FieldBuyerAddress     = "buyer_mailing_address"
	FieldCoBuyerName      = "cobuyer_name"
	FieldCoBuyerEmail     = "cobuyer_email"
	FieldModelDescription = "model_description"
	FieldDeliveryAddress  = "delivery_address"
	FieldJurisdiction     = "jurisdiction"
	FieldBasePrice        = "base_price"
	FieldOptionsTotal     = "options_total"
	FieldDeliveryFee      = "delivery_fee"
	FieldTaxes            = "taxes"
	FieldTotalPrice       = "total_price"
)

var common = []Entry{
	{Name: FieldOrderID, Role: models.RoleBuyer, Editable: false},
	{Name: FieldOrderDate, Role: models.RoleBuyer, Editable: false},
	{Name: FieldBuyerName, Role: models.RoleBuyer, Editable: false},
	{Name: FieldBuyerEmail, Role: models.RoleBuyer, Editable: false},
	{Name: FieldCoBuyerName, Role: models.RoleCoBuyer, Editable: false},
	{Name: FieldJurisdiction, Role: models.RoleBuyer, Editable: false},
	{Name: "buyer_signature", Role: models.RoleBuyer, Editable: true},
	{Name: "cobuyer_signature", Role: models.RoleCoBuyer, Editable: true},
	{Name: "counter_signature", Role: models.RoleCounterSigner, Editable: true},
}

var byPack = map[models.PackType][]Entry{
	models.PackAgreement: append([]Entry{
		{Name: FieldBuyerPhone, Role: models.RoleBuyer, Editable: false},
		{Name: FieldBuyerAddress, Role: models.RoleBuyer, Editable: false},
		{Name: FieldCoBuyerEmail, Role: models.RoleCoBuyer, Editable: false},
		{Name: FieldModelDescription, Role: models.RoleBuyer, Editable: false},
		{Name: FieldBasePrice, Role: models.RoleBuyer, Editable: false},
		{Name: FieldOptionsTotal, Role: models.RoleBuyer, Editable: false},
		{Name: FieldDeliveryFee, Role: models.RoleBuyer, Editable: false},
		{Name: FieldTaxes, Role: models.RoleBuyer, Editable: false},
		{Name: FieldTotalPrice, Role: models.RoleBuyer, Editable: false},
		{Name: "buyer_initials", Role: models.RoleBuyer, Editable: true},
		{Name: "cobuyer_initials", Role: models.RoleCoBuyer, Editable: true},
	}, common...),

	models.PackDelivery: append([]Entry{
		{Name: FieldDeliveryAddress, Role: models.RoleBuyer, Editable: false},
		{Name: FieldModelDescription, Role: models.RoleBuyer, Editable: false},
		{Name: FieldDeliveryFee, Role: models.RoleBuyer, Editable: false},
		{Name: "site_ready_confirmation", Role: models.RoleBuyer, Editable: true},
		{Name: "access_notes", Role: models.RoleBuyer, Editable: true},
	}, common...),

	models.PackFinal: append([]Entry{
		{Name: FieldTotalPrice, Role: models.RoleBuyer, Editable: false},
		{Name: FieldDeliveryAddress, Role: models.RoleBuyer, Editable: false},
		{Name: "final_acknowledgment", Role: models.RoleBuyer, Editable: true},
		{Name: "cobuyer_acknowledgment", Role: models.RoleCoBuyer, Editable: true},
		{Name: "buyer_initials", Role: models.RoleBuyer, Editable: true},
	}, common...),
}

// FieldsFor returns the field map for a pack. Unknown packs yield nil.
func FieldsFor(pack models.PackType) []Entry {
	return byPack[pack]
}

// ReadOnlyFor returns just the read-only entries for a pack.
func ReadOnlyFor(pack models.PackType) []Entry {
	var out []Entry
	for _, e := range byPack[pack] {
		if !e.Editable {
			out = append(out, e)
		}
	}
	return out
}

// RolesFor returns the distinct roles referenced by a pack's fields, in
// first-seen order. Used when registering templates at the provider.
func RolesFor(pack models.PackType) []models.SubmitterRole {
	seen := map[models.SubmitterRole]bool{}
	var out []models.SubmitterRole
	for _, e := range byPack[pack] {
		if !seen[e.Role] {
			seen[e.Role] = true
			out = append(out, e.Role)
		}
	}
	return out
}

// internal/models/order.go
package models

import (
	"strings"
	"time"
)

// Order is the read-only view of an order supplied by the order/build
// subsystem. The contract core never mutates it.
type Order struct {
	ID               string   `json:"id"`
	Buyer            Party    `json:"buyer"`
	CoBuyer          *Party   `json:"coBuyer,omitempty"`
	ModelDescription string   `json:"modelDescription"`
	DeliveryAddress  Address  `json:"deliveryAddress"`
	Pricing          Pricing  `json:"pricing"`
	Jurisdiction     string   `json:"jurisdiction"`
	OrderDate        time.Time `json:"orderDate"`
}

type Party struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone,omitempty"`
	MailingAddress Address `json:"mailingAddress"`
}

type Address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2,omitempty"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

// Oneline joins the populated address parts with comma separators.
func (a Address) Oneline() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State, a.Zip} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Pricing carries the order's price breakdown in integer minor-currency
// units (cents). Formatting to decimal strings happens in the prefill
// builder, never here.
type Pricing struct {
	BasePriceCents   int64 `json:"basePriceCents"`
	OptionsCents     int64 `json:"optionsCents"`
	DeliveryFeeCents int64 `json:"deliveryFeeCents"`
	TaxCents         int64 `json:"taxCents"`
	TotalCents       int64 `json:"totalCents"`
}

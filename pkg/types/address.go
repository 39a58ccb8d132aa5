package types

import "strings"

// Address is the shipping destination attached to an order, stored as jsonb.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	PostalCode *string `json:"postal_code,omitempty"`
	Phone      string  `json:"phone"`
	Name       string  `json:"name"`
}

// IsComplete reports whether the address carries everything the providers
// need. Postal code is optional; couriers here route by region.
func (a Address) IsComplete() bool {
	return strings.TrimSpace(a.Line1) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.Region) != "" &&
		strings.TrimSpace(a.Phone) != "" &&
		strings.TrimSpace(a.Name) != ""
}

package enums

import "fmt"

// Provider identifies an external system the core reconciles against.
type Provider string

const (
	ProviderPaygate Provider = "paygate"
	ProviderShipblu Provider = "shipblu"
)

var validProviders = []Provider{
	ProviderPaygate,
	ProviderShipblu,
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Provider.
func (p Provider) IsValid() bool {
	for _, candidate := range validProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProvider converts raw input into a Provider.
func ParseProvider(value string) (Provider, error) {
	for _, candidate := range validProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider %q", value)
}

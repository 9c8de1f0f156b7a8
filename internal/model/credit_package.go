package model

import "github.com/shopspring/decimal"

// CreditPackage is a purchasable bundle. PriceMinor is in the smallest
// currency unit (paise for INR).
type CreditPackage struct {
	ID          string `json:"id"           toml:"id"`
	Name        string `json:"name"         toml:"name"`
	Description string `json:"description"  toml:"description"`
	Credits     int64  `json:"credits"      toml:"credits"`
	PriceMinor  int64  `json:"price_minor"  toml:"price_minor"`
	Popular     bool   `json:"popular"      toml:"popular"`
}

// DisplayPrice renders PriceMinor in major units, e.g. 99900 -> "999.00".
func (p CreditPackage) DisplayPrice() string {
	return decimal.New(p.PriceMinor, -2).StringFixed(2)
}

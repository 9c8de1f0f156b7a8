package fixtures

import (
	"github.com/nimasrn/credit-gateway/internal/model"
)

const (
	KeyID     = "rzp_test_e2e"
	KeySecret = "e2e_key_secret"
	JWTSecret = "e2e_jwt_secret"
)

var (
	StarterPackage = model.CreditPackage{
		ID:         "pkg_starter",
		Name:       "Starter",
		Credits:    20,
		PriceMinor: 39900,
	}

	StandardPackage = model.CreditPackage{
		ID:         "pkg_standard",
		Name:       "Standard",
		Credits:    60,
		PriceMinor: 99900,
		Popular:    true,
	}
)

// CatalogTOML is a catalog file with a single cheap package.
const CatalogTOML = `
[[package]]
id = "pkg_trial"
name = "Trial"
description = "5 credits"
credits = 5
price_minor = 4900
`

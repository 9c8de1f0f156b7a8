package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/nimasrn/credit-gateway/internal/model"
)

var ErrInvalidCatalog = errors.New("invalid credit package catalog")

var defaultPackages = []model.CreditPackage{
	{ID: "pkg_starter", Name: "Starter", Description: "20 credits", Credits: 20, PriceMinor: 39900},
	{ID: "pkg_standard", Name: "Standard", Description: "60 credits", Credits: 60, PriceMinor: 99900, Popular: true},
	{ID: "pkg_pro", Name: "Pro", Description: "100 credits", Credits: 100, PriceMinor: 149900},
	{ID: "pkg_business", Name: "Business", Description: "200 credits", Credits: 200, PriceMinor: 249900},
}

// Catalog is an immutable, ordered set of credit packages.
type Catalog struct {
	packages []model.CreditPackage
	byID     map[string]model.CreditPackage
}

func Default() *Catalog {
	c, err := New(defaultPackages)
	if err != nil {
		panic(err)
	}
	return c
}

func New(packages []model.CreditPackage) (*Catalog, error) {
	if len(packages) == 0 {
		return nil, fmt.Errorf("%w: no packages", ErrInvalidCatalog)
	}

	c := &Catalog{
		packages: make([]model.CreditPackage, 0, len(packages)),
		byID:     make(map[string]model.CreditPackage, len(packages)),
	}
	for i, p := range packages {
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("%w: package %d has no id", ErrInvalidCatalog, i)
		case p.Credits <= 0:
			return nil, fmt.Errorf("%w: package %s credits must be positive", ErrInvalidCatalog, p.ID)
		case p.PriceMinor <= 0:
			return nil, fmt.Errorf("%w: package %s price must be positive", ErrInvalidCatalog, p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate package id %s", ErrInvalidCatalog, p.ID)
		}
		c.byID[p.ID] = p
		c.packages = append(c.packages, p)
	}
	return c, nil
}

type file struct {
	Packages []model.CreditPackage `toml:"package"`
}

// LoadFile reads a TOML catalog:
//
//	[[package]]
//	id = "pkg_starter"
//	credits = 20
//	price_minor = 39900
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(string(data))
}

func Parse(data string) (*Catalog, error) {
	var f file
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidCatalog, undecoded)
	}
	return New(f.Packages)
}

// Load returns the catalog at path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

func (c *Catalog) Lookup(id string) (model.CreditPackage, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns a copy of the packages in declaration order.
func (c *Catalog) All() []model.CreditPackage {
	out := make([]model.CreditPackage, len(c.packages))
	copy(out, c.packages)
	return out
}

package domain

// Category classifies a product. The set is closed: every category has a
// fixed baseline refund rate, and a handful are restricted outright for
// regulatory or liability reasons.
type Category string

const (
	// Low refund risk
	CategoryTools   Category = "tools"
	CategoryCrafts  Category = "crafts"
	CategoryOffice  Category = "office"
	CategoryOutdoor Category = "outdoor"
	CategoryPet     Category = "pet"

	// Medium refund risk
	CategoryHomeDecor Category = "home_decor"
	CategoryKitchen   Category = "kitchen"
	CategoryJewelry   Category = "jewelry"
	CategoryGarden    Category = "garden"

	// High refund risk
	CategoryApparel     Category = "apparel"
	CategoryShoes       Category = "shoes"
	CategoryElectronics Category = "electronics"

	// Restricted (always rejected)
	CategorySupplements Category = "supplements"
	CategoryCosmetics   Category = "cosmetics"
	CategoryFood        Category = "food"
	CategoryMedical     Category = "medical"
	CategoryWeapons     Category = "weapons"
	CategoryChildren    Category = "children"
)

// ParseCategory maps a raw string to a Category. Unknown strings map to
// the empty Category, which fails Valid().
func ParseCategory(s string) Category {
	c := Category(s)
	if c.Valid() {
		return c
	}
	return ""
}

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryTools, CategoryCrafts, CategoryOffice, CategoryOutdoor, CategoryPet,
		CategoryHomeDecor, CategoryKitchen, CategoryJewelry, CategoryGarden,
		CategoryApparel, CategoryShoes, CategoryElectronics,
		CategorySupplements, CategoryCosmetics, CategoryFood,
		CategoryMedical, CategoryWeapons, CategoryChildren:
		return true
	}
	return false
}

// RefundRate returns the category's baseline refund rate and whether the
// category is in the table. Callers fall back to the configured default
// when ok is false.
func (c Category) RefundRate() (rate float64, ok bool) {
	switch c {
	case CategoryTools:
		return 0.05, true
	case CategoryCrafts:
		return 0.05, true
	case CategoryOffice:
		return 0.04, true
	case CategoryOutdoor:
		return 0.06, true
	case CategoryPet:
		return 0.06, true
	case CategoryHomeDecor:
		return 0.08, true
	case CategoryKitchen:
		return 0.08, true
	case CategoryJewelry:
		return 0.10, true
	case CategoryGarden:
		return 0.08, true
	case CategoryApparel:
		return 0.15, true
	case CategoryShoes:
		return 0.18, true
	case CategoryElectronics:
		return 0.12, true
	case CategorySupplements:
		return 0.15, true
	case CategoryCosmetics:
		return 0.12, true
	case CategoryFood:
		return 0.10, true
	case CategoryMedical:
		return 0.10, true
	case CategoryWeapons:
		return 0.05, true
	case CategoryChildren:
		return 0.12, true
	}
	return 0, false
}

// Restricted reports whether the category is automatically rejected
// regardless of financials.
func (c Category) Restricted() bool {
	switch c {
	case CategorySupplements, CategoryCosmetics, CategoryFood,
		CategoryMedical, CategoryWeapons, CategoryChildren:
		return true
	}
	return false
}

// PassionNiche reports whether the category is a hobbyist niche whose
// buyers tolerate higher prices and longer waits, earning a scoring bonus.
func (c Category) PassionNiche() bool {
	switch c {
	case CategoryCrafts, CategoryOutdoor, CategoryPet, CategoryGarden:
		return true
	}
	return false
}

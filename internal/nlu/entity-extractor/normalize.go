// internal/nlu/entity-extractor/normalize.go
package entityextractor

import "strings"

// CategoryTable folds raw category terms to their canonical singular form.
// The same table drives extraction and catalog filtering so "laptop" and
// "laptops" match identically end to end.
type CategoryTable map[string]string

// DefaultCategories covers the storefront's catalog taxonomy.
var DefaultCategories = CategoryTable{
	"laptop":      "laptop",
	"laptops":     "laptop",
	"notebook":    "laptop",
	"notebooks":   "laptop",
	"accessory":   "accessory",
	"accessories": "accessory",
	"display":     "display",
	"displays":    "display",
	"monitor":     "display",
	"monitors":    "display",
	"keyboard":    "keyboard",
	"keyboards":   "keyboard",
	"mouse":       "mouse",
	"mice":        "mouse",
	"headset":     "headset",
	"headsets":    "headset",
	"storage":     "storage",
	"ssd":         "storage",
	"ssds":        "storage",
	"memory":      "memory",
	"ram":         "memory",
	"networking":  "networking",
}

// Normalize returns the canonical form of a category term, or "" when the
// term is not recognized. Unrecognized terms are dropped, not errored.
func (t CategoryTable) Normalize(term string) string {
	if term == "" {
		return ""
	}
	return t[strings.ToLower(strings.TrimSpace(term))]
}

// DefaultBrands is the recognized brand list, overridable via config.
var DefaultBrands = []string{
	"Dell", "HP", "Lenovo", "Apple", "Asus", "Acer", "MSI", "Samsung",
	"Microsoft", "Razer", "Logitech", "Corsair",
}

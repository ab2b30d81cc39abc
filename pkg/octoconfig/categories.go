package octoconfig

import "github.com/matzehuels/octoscrape/pkg/scrapeerrors"

// categories maps a human-entered category display name to the numeric
// category id the upstream API expects in a category_id filter. There is no
// category-search operation this tool can call into, and no source file in
// the reference implementation enumerates these ids either (no
// config/categories.rs or equivalent exists there) — this table is
// hand-populated from the upstream site's own category listing and compiled
// in rather than discovered at runtime.
var categories = map[string]string{
	"Resistors":                    "4287",
	"Ceramic Capacitors":           "6332",
	"Mica Capacitors":              "6334",
	"Tantalum Capacitors":          "6335",
	"Aluminum Electrolytic Capacitors": "6336",
	"Film Capacitors":              "6337",
	"Inductors":                    "4292",
	"Diodes":                       "4195",
	"Rectifiers":                   "4196",
	"Bipolar Transistors":          "4242",
	"MOSFETs":                      "4243",
	"Operational Amplifiers":       "4360",
	"Voltage Regulators":           "4370",
	"Microcontrollers":             "4401",
	"Connectors":                   "4500",
	"Relays":                       "4520",
	"Switches":                     "4530",
	"Crystals and Oscillators":     "4550",
	"Fuses":                        "4570",
	"LEDs":                         "4600",
}

// attributes maps a human-entered attribute display name to the numeric
// attribute id used both in spec_aggs requests and in filter keys. Like
// categories, this table is hand-populated, not sourced from any file in
// the reference implementation.
var attributes = map[string]string{
	"Resistance":           "305",
	"Tolerance":             "162",
	"Power (Watts)":         "104",
	"Capacitance":           "306",
	"Voltage Rating":        "163",
	"Package / Case":        "268",
	"Mounting Type":         "271",
	"Temperature Coefficient": "312",
	"Current Rating":        "164",
	"Frequency":             "730",
	"Dielectric":            "331",
	"Inductance":            "307",
}

// CategoryID resolves a category display name to its upstream id.
func CategoryID(name string) (string, error) {
	if err := scrapeerrors.ValidateCategoryName(name); err != nil {
		return "", err
	}
	id, ok := categories[name]
	if !ok {
		return "", scrapeerrors.New(scrapeerrors.ErrCodeConfigInvalidCategory, "unknown category: %q", name)
	}
	return id, nil
}

// AttributeID resolves an attribute display name to its upstream id.
func AttributeID(name string) (string, error) {
	if err := scrapeerrors.ValidateAttributeName(name); err != nil {
		return "", err
	}
	id, ok := attributes[name]
	if !ok {
		return "", scrapeerrors.New(scrapeerrors.ErrCodeConfigInvalidAttribute, "unknown attribute: %q", name)
	}
	return id, nil
}

// AttributeIDs resolves a slice of attribute display names, preserving
// order, or returns the first resolution error encountered.
func AttributeIDs(names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, err := AttributeID(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// KnownCategories returns the display names of every compiled-in category,
// primarily for CLI completion and error messages.
func KnownCategories() []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	return names
}

// KnownAttributes returns the display names of every compiled-in attribute.
func KnownAttributes() []string {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	return names
}

// Package sheet renders canonical technical data sheets. The rendered form is
// what retrieval and generation depend on for unambiguous product/property
// association, so its layout is fixed: boundary markers, a single uppercased
// PRODUCT line, one "Title Case Key: Value" line per property.
package sheet

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cadueduardo/MAF/internal/domain"
)

const (
	// OpenMarker begins every canonical sheet text.
	OpenMarker = "=== TECHNICAL DATA SHEET START ==="
	// CloseMarker ends every canonical sheet text.
	CloseMarker = "=== TECHNICAL DATA SHEET END ==="
	// ProductPrefix labels the product identity line inside a sheet.
	ProductPrefix = "PRODUCT: "
	// SourcePrefix labels the origin line of sheets without a product identity.
	SourcePrefix = "SOURCE: "
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Render produces the canonical sheet text for a named product.
func Render(product string, properties []domain.Property) string {
	var b strings.Builder
	b.WriteString(OpenMarker)
	b.WriteByte('\n')
	b.WriteString(ProductPrefix)
	b.WriteString(strings.ToUpper(strings.TrimSpace(product)))
	b.WriteByte('\n')
	for _, p := range properties {
		key := TitleKey(p.Key)
		value := strings.TrimSpace(p.Value)
		if key == "" || value == "" {
			continue
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteByte('\n')
	}
	b.WriteString(CloseMarker)
	return b.String()
}

// Wrap produces the canonical sheet text for pre-harvested web text, which
// carries no product identity. The body is embedded as-is.
func Wrap(source, text string) string {
	var b strings.Builder
	b.WriteString(OpenMarker)
	b.WriteByte('\n')
	b.WriteString(SourcePrefix)
	b.WriteString(strings.TrimSpace(source))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(text))
	b.WriteByte('\n')
	b.WriteString(CloseMarker)
	return b.String()
}

// TitleKey normalizes a raw property key to a human-readable title form:
// separators become spaces, each word is capitalized, existing acronyms are
// left alone.
func TitleKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")
	if key == "" {
		return ""
	}
	return titleCaser.String(key)
}

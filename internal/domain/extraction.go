package domain

import (
	"regexp"
	"strings"
)

const (
	// defaultOptionName is the synthetic option Shopify adds to single-variant products
	defaultOptionName = "Title"
	// defaultVariantTitle is the title of the synthetic variant of single-variant products
	defaultVariantTitle = "Default Title"
)

// Shopify sample-data vendors: quickstart stores and numeric store handles
var eightDigitRun = regexp.MustCompile(`(^|[^0-9])[0-9]{8}([^0-9]|$)`)

// IsInvalidBrand reports whether vendor is a placeholder that must not become a Brand entity
func IsInvalidBrand(vendor string) bool {
	if strings.Contains(strings.ToLower(vendor), "quickstart") {
		return true
	}
	return eightDigitRun.MatchString(vendor)
}

// IsDefaultOption reports whether an option name is Shopify's synthetic default option
func IsDefaultOption(name string) bool {
	return name == defaultOptionName
}

// IsDefaultVariant reports whether a variant title is Shopify's synthetic default variant
func IsDefaultVariant(title string) bool {
	return title == defaultVariantTitle
}

// VariantEntityValue returns the ProductVariants value for one variant of a product
func VariantEntityValue(productTitle, variantTitle string) string {
	return productTitle + " " + variantTitle
}

// EntityCount is one distinct entity value found in a product batch
type EntityCount struct {
	Value    string
	Count    int
	Synonyms []string
}

// Entity converts the count into the entity pushed to Dialogflow
func (c EntityCount) Entity() Entity {
	return Entity{Value: c.Value, Synonyms: c.Synonyms}
}

// tally accumulates counts per value preserving first appearance order
type tally struct {
	index  map[string]int
	counts []EntityCount
}

func (t *tally) add(value string, synonyms ...string) {
	if value == "" {
		return
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	i, ok := t.index[value]
	if !ok {
		t.index[value] = len(t.counts)
		t.counts = append(t.counts, EntityCount{Value: value, Synonyms: []string{value}})
		i = len(t.counts) - 1
	}
	t.counts[i].Count++
	t.counts[i].Synonyms = unionStrings(t.counts[i].Synonyms, synonyms)
}

// Extraction holds the distinct values of every entity kind found in a product batch
type Extraction map[EntityKind][]EntityCount

// Entities returns the entities of kind ready to be pushed
func (e Extraction) Entities(kind EntityKind) []Entity {
	counts := e[kind]
	entities := make([]Entity, 0, len(counts))
	for _, c := range counts {
		entities = append(entities, c.Entity())
	}
	return entities
}

// Count returns the occurrences of value for kind
func (e Extraction) Count(kind EntityKind, value string) int {
	for _, c := range e[kind] {
		if c.Value == value {
			return c.Count
		}
	}
	return 0
}

// ExtractEntities derives per-kind occurrence counts from a batch of products.
// It has no side effects.
func ExtractEntities(products []*Product) Extraction {
	tallies := make(map[EntityKind]*tally, len(EntityKinds))
	for _, k := range EntityKinds {
		tallies[k] = &tally{}
	}

	for _, p := range products {
		if p == nil {
			continue
		}
		tallies[KindProduct].add(p.Title)

		if p.Vendor != "" && !IsInvalidBrand(p.Vendor) {
			tallies[KindBrand].add(p.Vendor)
		}

		tallies[KindProductType].add(p.ProductType)

		for _, o := range p.Options {
			if IsDefaultOption(o.Name) {
				continue
			}
			tallies[KindProductOptions].add(o.Name, o.Values...)
		}

		for _, value := range p.VariantValues() {
			tallies[KindProductVariants].add(value)
		}
	}

	out := make(Extraction, len(EntityKinds))
	for k, t := range tallies {
		out[k] = t.counts
	}
	return out
}

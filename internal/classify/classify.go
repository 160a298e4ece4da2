// Package classify maps the model's free-text waste type onto a fixed set of categories.
package classify

import (
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
)

type Category string

const (
	Plastic    Category = "plastic"
	Paper      Category = "paper"
	Glass      Category = "glass"
	Metal      Category = "metal"
	Organic    Category = "organic"
	Electronic Category = "electronic"
	Hazardous  Category = "hazardous"
	Textile    Category = "textile"
	Other      Category = "other"
)

// keywords are checked in order; hazardous comes first so "hazardous plastic" stays hazardous.
var keywords = []struct {
	category Category
	words    []string
}{
	{Hazardous, []string{"hazardous", "toxic", "chemical", "battery", "batteries", "medical", "asbestos", "paint", "oil", "pesticide"}},
	{Electronic, []string{"electronic", "electronics", "e-waste", "ewaste", "weee", "circuit", "appliance"}},
	{Plastic, []string{"plastic", "plastics", "pet", "hdpe", "ldpe", "polystyrene", "styrofoam", "polyethylene"}},
	{Paper, []string{"paper", "cardboard", "carton", "newspaper", "paperboard"}},
	{Glass, []string{"glass", "bottle", "jar"}},
	{Metal, []string{"metal", "metals", "aluminum", "aluminium", "steel", "tin", "copper", "iron", "can", "cans"}},
	{Organic, []string{"organic", "food", "compost", "compostable", "biodegradable", "garden", "yard", "green"}},
	{Textile, []string{"textile", "textiles", "clothes", "clothing", "fabric", "garment"}},
}

// qualified keywords only count when one of the listed tokens is also present,
// so "pet waste" is not read as PET plastic.
var qualified = map[string][]string{
	"pet": {"bottle", "bottles", "plastic", "container", "containers"},
}

// stopTokens carry no category signal and are dropped before matching.
var stopTokens = map[string]bool{
	"waste": true, "wastes": true, "material": true, "materials": true,
	"item": true, "items": true, "product": true, "products": true,
	"general": true, "mixed": true, "household": true, "type": true,
}

// maxDistance bounds how far a misspelled token may be from a keyword.
const maxDistance = 2

// allowedDistance scales the fuzzy tolerance with keyword length.
func allowedDistance(keyword string) int {
	if len(keyword) < 6 {
		return 1
	}
	return maxDistance
}

// Categorize returns the best matching category, or Other.
func Categorize(wasteType string) Category {
	tokens := tokenize(wasteType)
	if len(tokens) == 0 {
		return Other
	}

	for _, kw := range keywords {
		for _, tok := range tokens {
			for _, w := range kw.words {
				if tok != w {
					continue
				}
				if quals, ok := qualified[w]; ok && !containsAny(tokens, quals) {
					continue
				}
				return kw.category
			}
		}
	}

	best, bestDist := Other, maxDistance+1
	for _, kw := range keywords {
		for _, tok := range tokens {
			if len(tok) < 5 {
				continue
			}
			for _, w := range kw.words {
				if len(w) < 5 {
					continue
				}
				d := levenshtein.Distance(tok, w)
				if d > allowedDistance(w) {
					continue
				}
				if d < bestDist {
					best, bestDist = kw.category, d
				}
			}
		}
	}
	return best
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopTokens[f] {
			out = append(out, f)
		}
	}
	return out
}

func containsAny(tokens, want []string) bool {
	for _, t := range tokens {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}

// internal/nlu/entity-extractor/extractor.go
package entityextractor

import (
	"regexp"
	"strconv"
	"strings"

	"shop-assistant/internal/models"
)

// Extractor pulls structured candidates out of raw utterance text. It is a
// total function: malformed input yields an empty sequence, never an error.
type Extractor struct {
	categories CategoryTable
	brands     []string
}

func New(categories CategoryTable, brands []string) *Extractor {
	if categories == nil {
		categories = DefaultCategories
	}
	if len(brands) == 0 {
		brands = DefaultBrands
	}
	return &Extractor{categories: categories, brands: brands}
}

var (
	priceRe    = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]+)?)|([0-9][0-9,]*(?:\.[0-9]+)?)\s*(?:dollars|bucks|usd)`)
	betweenRe  = regexp.MustCompile(`(?i)\bbetween\s+\$?\s?([0-9][0-9,]*(?:\.[0-9]+)?)(?:\s*(?:dollars|bucks|usd))?\s+and\s+\$?\s?([0-9][0-9,]*(?:\.[0-9]+)?)`)
	orderTagRe = regexp.MustCompile(`(?i)(?:order\s*#?\s*|#)([0-9]+)`)
	numberRe   = regexp.MustCompile(`\b[0-9]+\b`)
	wordRe     = regexp.MustCompile(`[A-Za-z]+`)
	quantityRe = regexp.MustCompile(`(?i)\b([0-9]{1,2})\s*(?:x\b|pcs\b|pieces\b|units\b)`)

	quantityMarkerRe = regexp.MustCompile(`(?i)^\s*(?:x\b|pcs\b|pieces\b|units\b)`)
)

var upperBoundWords = []string{"under", "below", "max", "at most", "less than", "cheaper than", "within"}
var lowerBoundWords = []string{"over", "above", "min", "at least", "more than"}

// Extract returns entities in order of appearance. Multiple entities of the
// same type may coexist; the router disambiguates, never this layer.
func (e *Extractor) Extract(text string) []models.ExtractedEntity {
	if strings.TrimSpace(text) == "" {
		return []models.ExtractedEntity{}
	}

	var out []models.ExtractedEntity
	claimed := make(map[int]bool) // span starts already owned by an entity

	out = append(out, e.extractPrices(text, claimed)...)
	out = append(out, e.extractOrderIDs(text, claimed)...)
	out = append(out, e.extractQuantities(text, claimed)...)
	out = append(out, e.extractWords(text)...)
	out = append(out, extractStockStatus(text)...)

	sortBySpan(out)
	return out
}

// extractPrices finds monetary tokens and classifies them as exact prices
// or range bounds from the surrounding words. "between X and Y" folds two
// tokens into one PRICE_RANGE.
func (e *Extractor) extractPrices(text string, claimed map[int]bool) []models.ExtractedEntity {
	lower := strings.ToLower(text)
	var out []models.ExtractedEntity

	// "between X and Y" binds two numbers into one range, with or without
	// a currency marker.
	for _, m := range betweenRe.FindAllStringSubmatchIndex(text, -1) {
		lo, okLo := parseAmount(text[m[2]:m[3]])
		hi, okHi := parseAmount(text[m[4]:m[5]])
		if !okLo || !okHi {
			continue
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		out = append(out, models.ExtractedEntity{
			Type:  models.EntityPriceRange,
			Value: formatAmount(lo) + "-" + formatAmount(hi),
			Lower: &lo,
			Upper: &hi,
			Span:  [2]int{m[0], m[1]},
		})
		claimed[m[0]] = true
		claimed[m[2]] = true // digit offsets, so later passes skip them
		claimed[m[4]] = true
	}

	type priceToken struct {
		value float64
		span  [2]int
	}
	var tokens []priceToken
	for _, m := range priceRe.FindAllStringSubmatchIndex(text, -1) {
		if startClaimed(m, claimed) {
			continue
		}
		raw := firstGroup(text, m)
		v, ok := parseAmount(raw)
		if !ok {
			continue
		}
		tokens = append(tokens, priceToken{value: v, span: [2]int{m[0], m[1]}})
		claimed[m[0]] = true
		for i := 2; i+1 < len(m); i += 2 {
			if m[i] >= 0 {
				claimed[m[i]] = true // digit offset, so bare-number passes skip it
			}
		}
	}

	// Bare numbers after a bound word ("under 1000") are prices too, even
	// without a currency marker.
	for _, m := range numberRe.FindAllStringIndex(text, -1) {
		if claimed[m[0]] {
			continue
		}
		prefix := precedingWords(lower, m[0], 3)
		if !containsAny(prefix, upperBoundWords) && !containsAny(prefix, lowerBoundWords) {
			continue
		}
		if v, ok := parseAmount(text[m[0]:m[1]]); ok {
			tokens = append(tokens, priceToken{value: v, span: [2]int{m[0], m[1]}})
			claimed[m[0]] = true
		}
	}

	for _, tok := range tokens {
		v := tok.value
		prefix := precedingWords(lower, tok.span[0], 3)
		switch {
		case containsAny(prefix, upperBoundWords):
			out = append(out, models.ExtractedEntity{
				Type:  models.EntityPriceRange,
				Value: formatAmount(v),
				Upper: &v,
				Span:  tok.span,
			})
		case containsAny(prefix, lowerBoundWords):
			out = append(out, models.ExtractedEntity{
				Type:  models.EntityPriceRange,
				Value: formatAmount(v),
				Lower: &v,
				Span:  tok.span,
			})
		default:
			out = append(out, models.ExtractedEntity{
				Type:  models.EntityPrice,
				Value: formatAmount(v),
				Lower: &v,
				Upper: &v,
				Span:  tok.span,
			})
		}
	}
	return out
}

// extractOrderIDs returns every plausible order identifier: numeric tokens
// tagged with "#" or "order", plus bare numbers of four or more digits.
// Ambiguity is preserved for the router to resolve.
func (e *Extractor) extractOrderIDs(text string, claimed map[int]bool) []models.ExtractedEntity {
	var out []models.ExtractedEntity

	for _, m := range orderTagRe.FindAllStringSubmatchIndex(text, -1) {
		if claimed[m[2]] {
			continue
		}
		// "order 2 laptops" reads as a quantity, not an order number,
		// unless the number carries an explicit # tag.
		if !strings.Contains(text[m[0]:m[2]], "#") && e.quantityReading(text, m[2], m[3]) {
			continue
		}
		id := text[m[2]:m[3]]
		out = append(out, models.ExtractedEntity{
			Type:  models.EntityOrderID,
			Value: id,
			Span:  [2]int{m[0], m[1]},
		})
		claimed[m[2]] = true
		claimed[m[0]] = true
	}

	for _, m := range numberRe.FindAllStringIndex(text, -1) {
		if claimed[m[0]] {
			continue
		}
		tok := text[m[0]:m[1]]
		if len(tok) < 4 {
			continue
		}
		out = append(out, models.ExtractedEntity{
			Type:  models.EntityOrderID,
			Value: tok,
			Span:  [2]int{m[0], m[1]},
		})
		claimed[m[0]] = true
	}

	return out
}

func (e *Extractor) extractQuantities(text string, claimed map[int]bool) []models.ExtractedEntity {
	var out []models.ExtractedEntity

	for _, m := range quantityRe.FindAllStringSubmatchIndex(text, -1) {
		if claimed[m[2]] {
			continue
		}
		out = append(out, models.ExtractedEntity{
			Type:  models.EntityQuantity,
			Value: text[m[2]:m[3]],
			Span:  [2]int{m[0], m[1]},
		})
		claimed[m[2]] = true
	}

	// "2 laptops" style: a small number directly before a category word.
	for _, m := range numberRe.FindAllStringIndex(text, -1) {
		if claimed[m[0]] || !e.quantityReading(text, m[0], m[1]) {
			continue
		}
		out = append(out, models.ExtractedEntity{
			Type:  models.EntityQuantity,
			Value: text[m[0]:m[1]],
			Span:  [2]int{m[0], m[1]},
		})
		claimed[m[0]] = true
	}

	return out
}

// quantityReading reports whether the number at [start,end) reads as a
// small count: directly before a category word or a quantity marker.
func (e *Extractor) quantityReading(text string, start, end int) bool {
	if end-start > 2 {
		return false
	}
	if quantityMarkerRe.MatchString(text[end:]) {
		return true
	}
	rest := strings.TrimLeft(text[end:], " ")
	loc := wordRe.FindStringIndex(rest)
	return loc != nil && loc[0] == 0 && e.categories.Normalize(rest[loc[0]:loc[1]]) != ""
}

// extractWords walks alphabetic tokens once, picking up brands and
// categories. Unrecognized words are simply skipped.
func (e *Extractor) extractWords(text string) []models.ExtractedEntity {
	var out []models.ExtractedEntity

	for _, m := range wordRe.FindAllStringIndex(text, -1) {
		word := text[m[0]:m[1]]

		if brand := e.matchBrand(word); brand != "" {
			out = append(out, models.ExtractedEntity{
				Type:  models.EntityBrand,
				Value: brand,
				Span:  [2]int{m[0], m[1]},
			})
			continue
		}

		if canonical := e.categories.Normalize(word); canonical != "" {
			out = append(out, models.ExtractedEntity{
				Type:  models.EntityCategory,
				Value: canonical,
				Span:  [2]int{m[0], m[1]},
			})
		}
	}

	return out
}

func (e *Extractor) matchBrand(word string) string {
	for _, b := range e.brands {
		if strings.EqualFold(b, word) {
			return b
		}
	}
	return ""
}

func extractStockStatus(text string) []models.ExtractedEntity {
	lower := strings.ToLower(text)

	if idx := strings.Index(lower, "out of stock"); idx >= 0 {
		return []models.ExtractedEntity{{
			Type:  models.EntityStockStatus,
			Value: "out_of_stock",
			Span:  [2]int{idx, idx + len("out of stock")},
		}}
	}
	for _, phrase := range []string{"in stock", "available"} {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			return []models.ExtractedEntity{{
				Type:  models.EntityStockStatus,
				Value: "in_stock",
				Span:  [2]int{idx, idx + len(phrase)},
			}}
		}
	}
	return nil
}

// parseAmount parses a currency token into a currency-agnostic value.
func parseAmount(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// precedingWords returns up to n words immediately before byte offset pos.
func precedingWords(lower string, pos, n int) string {
	prefix := strings.TrimSpace(lower[:pos])
	words := strings.Fields(prefix)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// startClaimed reports whether the match start or any capture start in a
// submatch index slice is already owned by an earlier entity.
func startClaimed(m []int, claimed map[int]bool) bool {
	for i := 0; i+1 < len(m); i += 2 {
		if m[i] >= 0 && claimed[m[i]] {
			return true
		}
	}
	return false
}

// firstGroup returns the text of the first non-empty capture group.
func firstGroup(text string, m []int) string {
	for i := 2; i+1 < len(m); i += 2 {
		if m[i] >= 0 {
			return text[m[i]:m[i+1]]
		}
	}
	return ""
}

func sortBySpan(entities []models.ExtractedEntity) {
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0 && entities[j].Span[0] < entities[j-1].Span[0]; j-- {
			entities[j], entities[j-1] = entities[j-1], entities[j]
		}
	}
}

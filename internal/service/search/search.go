// Package search filters an already-fetched product list. It is a linear
// scan by design; the catalog is small enough that nothing smarter is
// warranted at this scale.
package search

import (
	"sort"
	"strings"

	"github.com/soggo/bounty/internal/models"
)

const MaxResults = 20

func haystacks(p *models.Product) []string {
	subtitle := ""
	if p.Subtitle != nil {
		subtitle = *p.Subtitle
	}
	return []string{
		strings.ToLower(p.Name),
		strings.ToLower(subtitle),
		strings.ToLower(p.ProductType),
		strings.ToLower(strings.Join(p.Tags, " ")),
	}
}

// Matches reports whether every token is a substring of at least one of
// name, subtitle, product type or the joined tags (case-insensitive).
func Matches(p *models.Product, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	hs := haystacks(p)
	for _, token := range tokens {
		found := false
		for _, h := range hs {
			if strings.Contains(h, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Filter tokenizes the query on whitespace, keeps products matching every
// token, and ranks bestsellers first, then newest.
func Filter(products []models.Product, query string) []models.Product {
	q := strings.TrimSpace(strings.ToLower(query))
	if q == "" {
		return nil
	}
	tokens := strings.Fields(q)

	var matches []models.Product
	for i := range products {
		if Matches(&products[i], tokens) {
			matches = append(matches, products[i])
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].IsBestseller != matches[j].IsBestseller {
			return matches[i].IsBestseller
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	return matches
}

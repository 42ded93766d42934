package coingecko

import (
	"sort"
	"strings"

	"github.com/cht-holly/chtholly-vault/internal/domain"
)

// Match tiers, best first
const (
	tierExactSymbol = iota
	tierExactName
	tierSymbolPrefix
	tierNamePrefix
	tierSubstring
	tierNone = -1
)

// RankAssets filters assets matching query and orders them by match quality:
// exact symbol, exact name, symbol prefix, name prefix, then any substring.
// Ties are broken alphabetically by name, then id. At most limit results are returned.
func RankAssets(assets []domain.AssetListing, query string, excludeIDs []string, limit int) []domain.AssetListing {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []domain.AssetListing{}
	}

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	type candidate struct {
		asset domain.AssetListing
		name  string
		tier  int
	}

	var matches []candidate
	for _, asset := range assets {
		if excluded[asset.ID] {
			continue
		}
		name := strings.ToLower(asset.Name)
		tier := matchTier(q, strings.ToLower(asset.Symbol), name, strings.ToLower(asset.ID))
		if tier == tierNone {
			continue
		}
		matches = append(matches, candidate{asset: asset, name: name, tier: tier})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].tier != matches[j].tier {
			return matches[i].tier < matches[j].tier
		}
		if matches[i].name != matches[j].name {
			return matches[i].name < matches[j].name
		}
		return matches[i].asset.ID < matches[j].asset.ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]domain.AssetListing, len(matches))
	for i, m := range matches {
		results[i] = m.asset
	}
	return results
}

func matchTier(q, symbol, name, id string) int {
	switch {
	case symbol == q:
		return tierExactSymbol
	case name == q:
		return tierExactName
	case strings.HasPrefix(symbol, q):
		return tierSymbolPrefix
	case strings.HasPrefix(name, q):
		return tierNamePrefix
	case strings.Contains(symbol, q), strings.Contains(name, q), strings.Contains(id, q):
		return tierSubstring
	}
	return tierNone
}

package utils

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// RankByDistance sorts items by edit distance of name(item) to query, closest first.
// Names containing the query as a substring always rank ahead of those that do not.
func RankByDistance[T any](items []T, query string, name func(T) string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	type scored struct {
		item     T
		contains bool
		distance int
		index    int
	}
	list := make([]scored, 0, len(items))
	for i, it := range items {
		n := strings.ToLower(name(it))
		list = append(list, scored{
			item:     it,
			contains: q != "" && strings.Contains(n, q),
			distance: levenshtein.ComputeDistance(q, n),
			index:    i,
		})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].contains != list[j].contains {
			return list[i].contains
		}
		if list[i].distance != list[j].distance {
			return list[i].distance < list[j].distance
		}
		return list[i].index < list[j].index
	})
	out := make([]T, len(list))
	for i, s := range list {
		out[i] = s.item
	}
	return out
}

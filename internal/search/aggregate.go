package search

import (
	"sort"

	"github.com/hyperjump/jobmatch/internal/models"
)

// BestPerDocument keeps the highest-scoring chunk of every document,
// drops matches of the excluded document IDs, and returns the rest in
// descending score order with ranks reassigned. Equal scores keep their
// input order.
func BestPerDocument(matches []*models.Match, exclude ...string) []*models.Match {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	best := make(map[string]int)
	out := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		docID := m.DocumentID()
		if skip[docID] {
			continue
		}
		if i, ok := best[docID]; ok {
			if m.Score > out[i].Score {
				out[i] = m
			}
			continue
		}
		best[docID] = len(out)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i, m := range out {
		m.Rank = i + 1
	}
	return out
}

package matching

import (
	"sort"
	"strings"
)

// RefPointCandidate is the minimal shape matching needs from a catalog
// ReferenceMapPoint to run dedup (spec.md §4.9 "Reference-map
// deduplication").
type RefPointCandidate struct {
	PointID string
	Name    string
	Lat     float64
	Lng     float64
}

// DedupGroup is one cluster of points that round to the same GPS bucket,
// with the chosen survivor and the rest marked for deletion.
type DedupGroup struct {
	Survivor       RefPointCandidate
	AkaNames       string   // pipe-separated, spec.md §4.9
	DeletedPointIDs []string
}

// DedupReferencePoints groups points by rounded GPS (4 decimals, ~10m)
// and within each group picks the best-scored name, merging the rest into
// aka_names (spec.md §4.9 "Reference-map deduplication").
func DedupReferencePoints(points []RefPointCandidate) []DedupGroup {
	type bucketKey struct {
		lat, lng float64
	}
	buckets := make(map[bucketKey][]RefPointCandidate)
	var order []bucketKey
	for _, p := range points {
		k := bucketKey{RoundCoord(p.Lat), RoundCoord(p.Lng)}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], p)
	}

	var groups []DedupGroup
	for _, k := range order {
		group := buckets[k]
		if len(group) == 1 {
			groups = append(groups, DedupGroup{Survivor: group[0]})
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return nameScore(group[i].Name) > nameScore(group[j].Name)
		})
		survivor := group[0]
		var akas []string
		var deleted []string
		for _, p := range group[1:] {
			if p.Name != "" && p.Name != survivor.Name && !IsCoordinateLikeName(p.Name) {
				akas = append(akas, p.Name)
			}
			deleted = append(deleted, p.PointID)
		}
		groups = append(groups, DedupGroup{
			Survivor:        survivor,
			AkaNames:        strings.Join(akas, "|"),
			DeletedPointIDs: deleted,
		})
	}
	return groups
}

// nameScore ranks candidate names within a dedup group: coordinate-like
// names sink to the floor, otherwise longer and properly-cased names win
// (spec.md §4.9: "pick the best-scored name (longer, properly-cased,
// non-coordinate-looking)").
func nameScore(name string) float64 {
	if IsCoordinateLikeName(name) {
		return -1
	}
	score := float64(len(name))
	if hasProperCasing(name) {
		score += 100
	}
	return score
}

func hasProperCasing(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}
	r := rune(trimmed[0])
	return r >= 'A' && r <= 'Z' && trimmed != strings.ToUpper(trimmed)
}

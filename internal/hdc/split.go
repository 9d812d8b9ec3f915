package hdc

import "math"

// SplitPeriod is how often maybe_split runs (spec.md §4.1: "Runs
// periodically (reference: every 50 solves)").
const SplitPeriod = 50

// Tick advances the internal solve counter and reports whether this solve
// should trigger a maybe_split sweep, i.e. every SplitPeriod solves.
func (cm *ConceptMemory) Tick() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.newSince++
	if cm.newSince >= SplitPeriod {
		cm.newSince = 0
		return true
	}
	return false
}

// MaybeSplit walks concepts whose sample_count exceeds maxSamples and whose
// recent member vectors show wide variance, splitting each into two
// prototypes via 2-means on the recent-member buffer (spec.md §4.1
// "Split"). Returns the number of concepts split.
func (cm *ConceptMemory) MaybeSplit(maxSamples int) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	splits := 0
	var toAdd []*Concept
	var toRemoveNames []string

	for _, name := range cm.order {
		c := cm.byName[name]
		if c.SampleCount <= maxSamples {
			continue
		}
		if len(c.recentMembers) < 8 {
			continue
		}
		if variance(c.recentMembers) < splitVarianceThreshold {
			continue
		}

		a, b, ok := kmeans2(c.recentMembers)
		if !ok {
			continue
		}

		splits++
		toRemoveNames = append(toRemoveNames, name)
		toAdd = append(toAdd,
			&Concept{
				Name:          name + "#1",
				Prototype:     a,
				SampleCount:   len(c.recentMembers) / 2,
				recentMembers: c.recentMembers,
			},
			&Concept{
				Name:          name + "#2",
				Prototype:     b,
				SampleCount:   len(c.recentMembers) - len(c.recentMembers)/2,
				recentMembers: c.recentMembers,
			},
		)
	}

	if splits == 0 {
		return 0
	}

	removeSet := make(map[string]struct{}, len(toRemoveNames))
	for _, n := range toRemoveNames {
		removeSet[n] = struct{}{}
		delete(cm.byName, n)
	}
	newOrder := make([]string, 0, len(cm.order))
	for _, n := range cm.order {
		if _, gone := removeSet[n]; !gone {
			newOrder = append(newOrder, n)
		}
	}
	for _, c := range toAdd {
		cm.byName[c.Name] = c
		newOrder = append(newOrder, c.Name)
	}
	cm.order = newOrder
	return splits
}

// splitVarianceThreshold is the minimum average squared cosine-distance
// from centroid before a concept is considered to have drifted enough to
// warrant a split.
const splitVarianceThreshold = 0.08

func variance(members []*Hypervector) float64 {
	centroid := Bundle(members...)
	var sum float64
	for _, m := range members {
		d := 1 - Cosine(m, centroid)
		sum += d * d
	}
	return sum / float64(len(members))
}

// kmeans2 performs a small fixed-iteration 2-means clustering over the
// member buffer, seeded from the two most dissimilar members so the split
// has a meaningful starting separation.
func kmeans2(members []*Hypervector) (*Hypervector, *Hypervector, bool) {
	if len(members) < 2 {
		return nil, nil, false
	}

	// Seed: the pair with the lowest cosine similarity.
	bestI, bestJ := 0, 1
	lowest := math.Inf(1)
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sim := Cosine(members[i], members[j])
			if sim < lowest {
				lowest = sim
				bestI, bestJ = i, j
			}
		}
	}
	centroidA := members[bestI].Clone()
	centroidB := members[bestJ].Clone()

	var groupA, groupB []*Hypervector
	for iter := 0; iter < 5; iter++ {
		groupA = groupA[:0]
		groupB = groupB[:0]
		for _, m := range members {
			if Cosine(m, centroidA) >= Cosine(m, centroidB) {
				groupA = append(groupA, m)
			} else {
				groupB = append(groupB, m)
			}
		}
		if len(groupA) == 0 || len(groupB) == 0 {
			break
		}
		centroidA = Bundle(groupA...)
		centroidB = Bundle(groupB...)
	}

	if len(groupA) == 0 || len(groupB) == 0 {
		return nil, nil, false
	}
	return centroidA, centroidB, true
}

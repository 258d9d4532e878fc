// Package relations implements the three-phase cross-reference maintenance
// that runs once per batch: integrity sweep, direction reevaluation, and
// similarity-based auto-linking. Relations are stored inline on each record
// as an ordered, bounded []string of target ids, a directed-edge shape with
// no separate edge table. The BFS-with-visited-set cycle-breaking pattern
// used by retrieval's graph expansion (internal/retrieval) lives here too.
package relations

import (
	"sort"

	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
	"github.com/orogiadon/ltm-system-for-llm/pkg/vecstore"
)

// IntegritySweep drops any relation id that no longer refers to an existing
// record, for every record in all. Returns the set of records that changed
// so the caller can persist only those.
func IntegritySweep(all []*record.Memory) []*record.Memory {
	exists := make(map[string]struct{}, len(all))
	for _, m := range all {
		exists[m.ID] = struct{}{}
	}

	var changed []*record.Memory
	for _, m := range all {
		kept := m.Relations[:0:0]
		dirty := false
		for _, rel := range m.Relations {
			if _, ok := exists[rel]; ok {
				kept = append(kept, rel)
			} else {
				dirty = true
			}
		}
		if dirty {
			m.Relations = kept
			changed = append(changed, m)
		}
	}
	return changed
}

// ReevaluateDirection walks every edge A -> B and, if B's retention score
// exceeds A's, replaces it with B -> A (subject to the per-record cap),
// enforcing the invariant that a lower-score record never references a
// higher-score one. Built as a single pass over a snapshot of the original
// adjacency before any record is mutated, so an edge reversed on this pass
// is never re-read as if it were original. Returns the set of records that
// changed.
func ReevaluateDirection(all []*record.Memory, cfg config.Relations) []*record.Memory {
	byID := make(map[string]*record.Memory, len(all))
	for _, m := range all {
		byID[m.ID] = m
	}

	type edge struct{ from, to string }
	var toReverse []edge
	toDrop := make(map[edge]struct{})

	for _, a := range all {
		for _, toID := range a.Relations {
			b, ok := byID[toID]
			if !ok {
				continue
			}
			if b.RetentionScore > a.RetentionScore {
				toReverse = append(toReverse, edge{from: a.ID, to: b.ID})
				toDrop[edge{from: a.ID, to: b.ID}] = struct{}{}
			}
		}
	}

	if len(toReverse) == 0 {
		return nil
	}

	changedSet := make(map[string]*record.Memory)
	for _, e := range toReverse {
		a := byID[e.from]
		a.Relations = removeID(a.Relations, e.to)
		changedSet[a.ID] = a

		b := byID[e.to]
		if !containsID(b.Relations, e.from) && len(b.Relations) < cfg.MaxRelationsPerMemory {
			b.Relations = append(b.Relations, e.from)
			changedSet[b.ID] = b
		}
	}

	changed := make([]*record.Memory, 0, len(changedSet))
	for _, m := range changedSet {
		changed = append(changed, m)
	}
	return changed
}

// AutoLink finds, for each record in newIDs, similar existing non-archived
// records (cosine similarity >= the configured threshold) and inserts a
// directed edge from the higher-scored record to the lower-scored one,
// subject to the per-record cap and skipping duplicates. candidates must
// include every non-archived record (including the new ones); newIDs names
// which of them were just ingested/revived and therefore need linking.
// Returns the set of records that changed.
func AutoLink(candidates []*record.Memory, newIDs map[string]struct{}, cfg config.Relations) []*record.Memory {
	if !cfg.EnableAutoLinking {
		return nil
	}

	withEmbedding := make([]*record.Memory, 0, len(candidates))
	for _, m := range candidates {
		if m.Embedding != nil {
			withEmbedding = append(withEmbedding, m)
		}
	}
	sort.Slice(withEmbedding, func(i, j int) bool { return withEmbedding[i].ID < withEmbedding[j].ID })

	changedSet := make(map[string]*record.Memory)

	for _, n := range withEmbedding {
		if _, isNew := newIDs[n.ID]; !isNew {
			continue
		}
		for _, other := range withEmbedding {
			if other.ID == n.ID {
				continue
			}
			sim := 1 - float64(vecstore.CosineDistance(n.Embedding, other.Embedding))
			if sim < cfg.AutoLinkSimilarityThreshold {
				continue
			}

			high, low := n, other
			if other.RetentionScore > n.RetentionScore {
				high, low = other, n
			}

			if containsID(high.Relations, low.ID) {
				continue
			}
			if len(high.Relations) >= cfg.MaxRelationsPerMemory {
				continue
			}
			high.Relations = append(high.Relations, low.ID)
			changedSet[high.ID] = high
		}
	}

	changed := make([]*record.Memory, 0, len(changedSet))
	for _, m := range changedSet {
		changed = append(changed, m)
	}
	return changed
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// Expand performs depth-d BFS over relations starting from seed ids,
// breaking cycles with an explicit visited set. byID must contain every
// record reachable from seeds. Returns the newly-discovered ids only (not
// the seeds themselves), in the order they were first reached.
func Expand(seeds []string, byID map[string]*record.Memory, depth int) []string {
	visited := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		visited[s] = struct{}{}
	}

	frontier := append([]string(nil), seeds...)
	var discovered []string

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			m, ok := byID[id]
			if !ok {
				continue
			}
			for _, n := range m.Relations {
				if _, ok := visited[n]; ok {
					continue
				}
				visited[n] = struct{}{}
				next = append(next, n)
				discovered = append(discovered, n)
			}
		}
		frontier = next
	}

	return discovered
}

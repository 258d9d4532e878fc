package store

import (
	"fmt"

	"github.com/orogiadon/ltm-system-for-llm/pkg/kv"
)

// Key layout, namespaced under a single "m" root so the record table and the
// state table can share one engine file:
//
//	m rec <id>                          -> msgpack-encoded record
//	m idx level   <level>      <id>     -> marker, secondary index by current_level
//	m idx archived <archived>  <id>     -> marker, secondary index by archived_at
//	m idx created <created>   <id>     -> marker, secondary index by created
//	m idx score   <bucket>    <id>     -> marker, coarse secondary index by retention_score
//	m state <key>                        -> raw value

func recordKey(id string) kv.Key { return kv.Key{"m", "rec", id} }

func recordPrefix() kv.Key { return kv.Key{"m", "rec"} }

func levelIndexKey(level int, id string) kv.Key {
	return kv.Key{"m", "idx", "level", fmt.Sprintf("%d", level), id}
}

func levelIndexPrefix(level int) kv.Key {
	return kv.Key{"m", "idx", "level", fmt.Sprintf("%d", level)}
}

func archivedIndexKey(archivedAtNano int64, id string) kv.Key {
	return kv.Key{"m", "idx", "archived", fmt.Sprintf("%020d", archivedAtNano), id}
}

func archivedIndexPrefix() kv.Key {
	return kv.Key{"m", "idx", "archived"}
}

func createdIndexKey(createdNano int64, id string) kv.Key {
	return kv.Key{"m", "idx", "created", fmt.Sprintf("%020d", createdNano), id}
}

func createdIndexPrefix() kv.Key {
	return kv.Key{"m", "idx", "created"}
}

// scoreBucket coarsens a retention score into a fixed-width, lexicographically
// sortable decile bucket so the score index can be range-scanned without a
// full table scan. Negative scores are not expected (retention scores are
// non-negative by construction) but are clamped to bucket 0 defensively.
func scoreBucket(score float64) int {
	b := int(score / 10)
	if b < 0 {
		b = 0
	}
	return b
}

func scoreIndexKey(score float64, id string) kv.Key {
	return kv.Key{"m", "idx", "score", fmt.Sprintf("%010d", scoreBucket(score)), id}
}

func scoreIndexPrefix() kv.Key {
	return kv.Key{"m", "idx", "score"}
}

func stateKey(key string) kv.Key { return kv.Key{"m", "state", key} }

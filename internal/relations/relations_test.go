package relations

import (
	"sort"
	"testing"

	"github.com/orogiadon/ltm-system-for-llm/internal/config"
	"github.com/orogiadon/ltm-system-for-llm/internal/record"
)

func mem(id string, score float64, rel ...string) *record.Memory {
	return &record.Memory{ID: id, RetentionScore: score, Relations: rel}
}

func TestIntegritySweepDropsDanglingRelations(t *testing.T) {
	a := mem("a", 10, "b", "ghost")
	b := mem("b", 5)
	changed := IntegritySweep([]*record.Memory{a, b})

	if len(changed) != 1 || changed[0].ID != "a" {
		t.Fatalf("expected only a to change, got %v", changed)
	}
	if len(a.Relations) != 1 || a.Relations[0] != "b" {
		t.Errorf("expected a.Relations == [b], got %v", a.Relations)
	}
}

func TestIntegritySweepNoOpWhenClean(t *testing.T) {
	a := mem("a", 10, "b")
	b := mem("b", 5)
	changed := IntegritySweep([]*record.Memory{a, b})
	if len(changed) != 0 {
		t.Errorf("expected no changes, got %v", changed)
	}
}

func TestReevaluateDirectionReversesLowToHighEdge(t *testing.T) {
	cfg := config.Relations{MaxRelationsPerMemory: 10}
	low := mem("low", 5, "high")
	high := mem("high", 50)

	changed := ReevaluateDirection([]*record.Memory{low, high}, cfg)
	if len(changed) == 0 {
		t.Fatalf("expected a direction change")
	}

	if containsID(low.Relations, "high") {
		t.Errorf("expected low -> high edge to be removed, got %v", low.Relations)
	}
	if !containsID(high.Relations, "low") {
		t.Errorf("expected high -> low edge to be added, got %v", high.Relations)
	}
}

func TestReevaluateDirectionRespectsCapOnReverse(t *testing.T) {
	cfg := config.Relations{MaxRelationsPerMemory: 1}
	low := mem("low", 5, "high")
	high := mem("high", 50, "already-full")

	ReevaluateDirection([]*record.Memory{low, high}, cfg)

	if containsID(high.Relations, "low") {
		t.Errorf("high should not gain a new edge once at cap, got %v", high.Relations)
	}
}

func TestReevaluateDirectionNoOpWhenAlreadyCorrect(t *testing.T) {
	cfg := config.Relations{MaxRelationsPerMemory: 10}
	high := mem("high", 50, "low")
	low := mem("low", 5)

	changed := ReevaluateDirection([]*record.Memory{high, low}, cfg)
	if len(changed) != 0 {
		t.Errorf("expected no changes when edges already point high->low, got %v", changed)
	}
}

func TestAutoLinkDisabled(t *testing.T) {
	cfg := config.Relations{EnableAutoLinking: false}
	a := mem("a", 10)
	a.Embedding = []float32{1, 0}
	b := mem("b", 5)
	b.Embedding = []float32{1, 0}

	changed := AutoLink([]*record.Memory{a, b}, map[string]struct{}{"a": {}}, cfg)
	if changed != nil {
		t.Errorf("expected no changes when auto-linking disabled, got %v", changed)
	}
}

func TestAutoLinkLinksSimilarRecordsHighToLow(t *testing.T) {
	cfg := config.Relations{EnableAutoLinking: true, AutoLinkSimilarityThreshold: 0.9, MaxRelationsPerMemory: 10}
	a := mem("a", 10)
	a.Embedding = []float32{1, 0, 0}
	b := mem("b", 50)
	b.Embedding = []float32{1, 0, 0}

	changed := AutoLink([]*record.Memory{a, b}, map[string]struct{}{"a": {}}, cfg)
	if len(changed) != 1 || changed[0].ID != "b" {
		t.Fatalf("expected b (higher score) to gain the edge, got %v", changed)
	}
	if !containsID(b.Relations, "a") {
		t.Errorf("expected b -> a edge, got %v", b.Relations)
	}
}

func TestAutoLinkSkipsDissimilarRecords(t *testing.T) {
	cfg := config.Relations{EnableAutoLinking: true, AutoLinkSimilarityThreshold: 0.99, MaxRelationsPerMemory: 10}
	a := mem("a", 10)
	a.Embedding = []float32{1, 0}
	b := mem("b", 50)
	b.Embedding = []float32{0, 1}

	changed := AutoLink([]*record.Memory{a, b}, map[string]struct{}{"a": {}}, cfg)
	if len(changed) != 0 {
		t.Errorf("expected no links for orthogonal embeddings, got %v", changed)
	}
}

func TestExpandBFSBreaksCycles(t *testing.T) {
	byID := map[string]*record.Memory{
		"a": mem("a", 10, "b"),
		"b": mem("b", 10, "c", "a"),
		"c": mem("c", 10, "a"),
	}

	discovered := Expand([]string{"a"}, byID, 3)
	sort.Strings(discovered)

	want := []string{"b", "c"}
	if len(discovered) != len(want) {
		t.Fatalf("expected %v, got %v", want, discovered)
	}
	for i := range want {
		if discovered[i] != want[i] {
			t.Errorf("expected %v, got %v", want, discovered)
		}
	}
}

func TestExpandRespectsDepth(t *testing.T) {
	byID := map[string]*record.Memory{
		"a": mem("a", 10, "b"),
		"b": mem("b", 10, "c"),
		"c": mem("c", 10, "d"),
		"d": mem("d", 10),
	}

	discovered := Expand([]string{"a"}, byID, 1)
	if len(discovered) != 1 || discovered[0] != "b" {
		t.Errorf("depth 1 should discover only b, got %v", discovered)
	}
}

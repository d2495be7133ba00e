// SPDX-License-Identifier: MPL-2.0

package linker

import (
	"errors"
	"slices"
	"testing"

	"github.com/eritbh/exby/internal/chunk"
)

// buildGraph wires a graph from fileName -> imported fileNames, marking every
// name that appears as a key or edge as a chunk.
func buildGraph(t *testing.T, edges map[string][]string, order []string) *chunk.Graph {
	t.Helper()
	g := chunk.NewGraph()
	for _, name := range order {
		c := &chunk.Chunk{FileName: name, ImportedChunks: edges[name]}
		if err := g.Add(c); err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return g
}

func TestFlatten_SharedDependency(t *testing.T) {
	t.Parallel()

	// a.js -> c.js, d.js; both c.js and d.js -> e.js.
	g := buildGraph(t, map[string][]string{
		"a.js": {"c.js", "d.js"},
		"c.js": {"e.js"},
		"d.js": {"e.js"},
	}, []string{"e.js", "c.js", "d.js", "a.js"})

	entry, _ := g.Get("a.js")
	got, err := Flatten(entry, g)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want := []string{"e.js", "c.js", "d.js", "a.js"}
	if !slices.Equal(got, want) {
		t.Errorf("Flatten(a.js) = %v, want %v", got, want)
	}
}

func TestFlatten_SiblingOrderFollowsEdgeOrder(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, map[string][]string{
		"a.js": {"d.js", "c.js"},
		"c.js": {"e.js"},
		"d.js": {"e.js"},
	}, []string{"e.js", "c.js", "d.js", "a.js"})

	entry, _ := g.Get("a.js")
	got, err := Flatten(entry, g)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want := []string{"e.js", "d.js", "c.js", "a.js"}
	if !slices.Equal(got, want) {
		t.Errorf("Flatten(a.js) = %v, want %v", got, want)
	}
}

func TestFlatten_IndependentEntry(t *testing.T) {
	t.Parallel()

	g := buildGraph(t, map[string][]string{
		"b.js": {"f.js"},
	}, []string{"f.js", "b.js"})

	entry, _ := g.Get("b.js")
	got, err := Flatten(entry, g)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want := []string{"f.js", "b.js"}
	if !slices.Equal(got, want) {
		t.Errorf("Flatten(b.js) = %v, want %v", got, want)
	}
}

func TestFlatten_MissingEntryYieldsEmptyList(t *testing.T) {
	t.Parallel()

	g := chunk.NewGraph()
	got, err := Flatten(nil, g)
	if err != nil {
		t.Fatalf("Flatten(nil) = %v, want nil error", err)
	}
	if len(got) != 0 {
		t.Errorf("Flatten(nil) = %v, want empty", got)
	}
}

func TestFlatten_TopologicalProperties(t *testing.T) {
	t.Parallel()

	edges := map[string][]string{
		"app.js":             {"chunks/ui-1.js", "chunks/net-1.js", "chunks/log-1.js"},
		"chunks/ui-1.js":     {"chunks/shared-1.js", "chunks/log-1.js"},
		"chunks/net-1.js":    {"chunks/shared-1.js"},
		"chunks/shared-1.js": {"chunks/log-1.js"},
	}
	g := buildGraph(t, edges, []string{
		"chunks/log-1.js", "chunks/shared-1.js", "chunks/ui-1.js", "chunks/net-1.js", "app.js",
	})

	entry, _ := g.Get("app.js")
	got, err := Flatten(entry, g)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}

	// No duplicates.
	index := make(map[string]int, len(got))
	for i, name := range got {
		if _, dup := index[name]; dup {
			t.Fatalf("chunk %q appears twice in %v", name, got)
		}
		index[name] = i
	}

	// Every chunk sits after all of its own imports.
	for i, name := range got {
		for _, dep := range edges[name] {
			j, ok := index[dep]
			if !ok {
				t.Fatalf("dependency %q of %q missing from %v", dep, name, got)
			}
			if j >= i {
				t.Errorf("chunk %q (index %d) precedes its dependency %q (index %d)", name, i, dep, j)
			}
		}
	}

	// The entry's own chunk is last.
	if got[len(got)-1] != "app.js" {
		t.Errorf("entry chunk not last in %v", got)
	}
}

func TestFlatten_CycleIsFatal(t *testing.T) {
	t.Parallel()

	g := chunk.NewGraph()
	_ = g.Add(&chunk.Chunk{FileName: "a.js", ImportedChunks: []string{"b.js"}})
	_ = g.Add(&chunk.Chunk{FileName: "b.js", ImportedChunks: []string{"a.js"}})

	entry, _ := g.Get("a.js")
	_, err := Flatten(entry, g)
	if err == nil {
		t.Fatal("Flatten on cyclic graph = nil error, want CycleError")
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("error %v is not a CycleError", err)
	}
	if len(cycleErr.Cycle) < 2 {
		t.Errorf("CycleError.Cycle = %v, want the cyclic path", cycleErr.Cycle)
	}
}

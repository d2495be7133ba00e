// SPDX-License-Identifier: MPL-2.0

// Package chunk models the bundler's output graph: one Chunk per physical
// script file, with export lists and import edges between chunks. The graph
// is produced once per build by the bundler boundary and is read-only to
// every downstream component; Validate is run at that boundary so the linker
// and resolver can assume well-formedness.
package chunk

import (
	"fmt"
)

type (
	// Chunk is one unit of compiled output.
	Chunk struct {
		// FileName is the output-relative path of the chunk. It is unique
		// across the graph and used as the graph key.
		FileName string

		// Code is the module body after bundling. It still contains the
		// import/export declarations the linker rewrites.
		Code string

		// ExportedNames lists the identifiers the chunk makes available to
		// importers, in declaration order.
		ExportedNames []string

		// ImportedChunks lists the FileNames of chunks this chunk's code
		// references, in edge-declaration order.
		ImportedChunks []string

		// IsEntry marks a chunk that corresponds 1:1 to an original
		// manifest script reference; EntryKey is that reference.
		IsEntry  bool
		EntryKey string
	}

	// Graph is an ordered, validated collection of Chunks.
	Graph struct {
		order   []string
		chunks  map[string]*Chunk
		entries map[string]string // entry key -> chunk file name
	}
)

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		chunks:  make(map[string]*Chunk),
		entries: make(map[string]string),
	}
}

// Add inserts a chunk, preserving insertion order. It rejects duplicate file
// names and duplicate entry keys; the upstream bundler never produces either,
// so a failure here means the bundler boundary mishandled its output.
func (g *Graph) Add(c *Chunk) error {
	if c.FileName == "" {
		return fmt.Errorf("chunk with empty file name")
	}
	if _, dup := g.chunks[c.FileName]; dup {
		return fmt.Errorf("duplicate chunk file name %q", c.FileName)
	}
	if c.IsEntry {
		if prev, dup := g.entries[c.EntryKey]; dup {
			return fmt.Errorf("entry key %q claimed by both %q and %q", c.EntryKey, prev, c.FileName)
		}
		g.entries[c.EntryKey] = c.FileName
	}
	g.chunks[c.FileName] = c
	g.order = append(g.order, c.FileName)
	return nil
}

// Get returns the chunk stored under fileName.
func (g *Graph) Get(fileName string) (*Chunk, bool) {
	c, ok := g.chunks[fileName]
	return c, ok
}

// Entry returns the chunk whose EntryKey matches entryKey. A missing entry is
// not an error: an entry point that produced no chunk simply has no
// dependencies to load.
func (g *Graph) Entry(entryKey string) (*Chunk, bool) {
	fileName, ok := g.entries[entryKey]
	if !ok {
		return nil, false
	}
	return g.chunks[fileName], true
}

// Chunks returns all chunks in insertion order.
func (g *Graph) Chunks() []*Chunk {
	out := make([]*Chunk, 0, len(g.order))
	for _, fileName := range g.order {
		out = append(out, g.chunks[fileName])
	}
	return out
}

// Len reports the number of chunks in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// Validate checks the cross-chunk invariants that Add cannot see: every
// import edge must resolve to a chunk in the same graph. It is called once
// when the graph is handed over from the bundler; downstream components rely
// on it instead of re-checking shape per traversal.
func (g *Graph) Validate() error {
	for _, fileName := range g.order {
		for _, dep := range g.chunks[fileName].ImportedChunks {
			if _, ok := g.chunks[dep]; !ok {
				return fmt.Errorf("chunk %q imports unknown chunk %q", fileName, dep)
			}
		}
	}
	return nil
}

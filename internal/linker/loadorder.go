// SPDX-License-Identifier: MPL-2.0

package linker

import (
	"fmt"
	"slices"
	"strings"

	"github.com/eritbh/exby/internal/chunk"
)

// CycleError indicates that the chunk graph contains an import cycle. The
// module format upstream forbids cycles between chunks, so hitting this means
// the bundler handed us a malformed graph; it is fatal rather than broken
// silently.
type CycleError struct {
	// Cycle holds the chunk file names along the cyclic path, ending with
	// the repeated chunk.
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("chunk import cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Flatten computes the ordered, de-duplicated list of chunk files an entry
// needs at load time. Dependencies are emitted depth-first in
// edge-declaration order before the chunk that imports them, so every chunk
// appears strictly after everything it transitively imports and the entry's
// own chunk comes last. A nil entry (an entry point that produced no chunk)
// yields an empty list.
//
// Emitted chunks are skipped on re-encounter: the first emission of a chunk
// already sits after that chunk's own dependencies, so skipping later
// occurrences is exactly keep-first de-duplication.
func Flatten(entry *chunk.Chunk, g *chunk.Graph) ([]string, error) {
	if entry == nil {
		return nil, nil
	}

	var (
		out     []string
		emitted = make(map[string]bool)
		onPath  = make(map[string]bool)
		path    []string
	)

	var visit func(c *chunk.Chunk) error
	visit = func(c *chunk.Chunk) error {
		if emitted[c.FileName] {
			return nil
		}
		if onPath[c.FileName] {
			return &CycleError{Cycle: append(slices.Clone(path), c.FileName)}
		}
		onPath[c.FileName] = true
		path = append(path, c.FileName)

		for _, dep := range c.ImportedChunks {
			dc, ok := g.Get(dep)
			if !ok {
				return fmt.Errorf("chunk %q imports unknown chunk %q", c.FileName, dep)
			}
			if err := visit(dc); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		delete(onPath, c.FileName)
		emitted[c.FileName] = true
		out = append(out, c.FileName)
		return nil
	}

	if err := visit(entry); err != nil {
		return nil, err
	}
	return out, nil
}

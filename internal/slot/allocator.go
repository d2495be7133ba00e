// SPDX-License-Identifier: MPL-2.0

// Package slot allocates the global-scope variable names that link rewritten
// chunks together. Each chunk gets exactly one slot name per build; the name
// is a deterministic function of the chunk's file name, so any component
// holding the same Allocator can re-derive it independently.
package slot

import (
	"strings"
	"sync"
)

const (
	prefix = "__exby_"
	suffix = "__"
)

// Allocator hands out globally unique, grammar-valid identifiers for chunk
// slots. The zero value is not usable; construct with NewAllocator. All
// methods are safe for concurrent use: lookup and insert happen under a
// single critical section so the uniqueness invariant holds even when chunk
// rewrites run in parallel.
type Allocator struct {
	mu      sync.Mutex
	byChunk map[string]string // chunk file name -> allocated variable name
	owners  map[string]string // allocated variable name -> chunk file name
}

// NewAllocator creates an empty Allocator. The cache grows monotonically for
// the lifetime of one build; there is no removal operation.
func NewAllocator() *Allocator {
	return &Allocator{
		byChunk: make(map[string]string),
		owners:  make(map[string]string),
	}
}

// Allocate returns the slot variable name for chunkFileName, allocating it on
// first request and returning the cached name on every subsequent call.
// Distinct file names always receive distinct variable names: when two file
// names sanitize to the same candidate, the later one is padded with
// underscores until it is unused.
//
// chunkFileName must be non-empty. Every chunk in a well-formed graph has a
// non-empty file name, so this is a precondition on the caller rather than a
// validated error.
func (a *Allocator) Allocate(chunkFileName string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if name, ok := a.byChunk[chunkFileName]; ok {
		return name
	}

	name := prefix + sanitize(chunkFileName) + suffix
	for {
		if _, taken := a.owners[name]; !taken {
			break
		}
		name += "_"
	}

	a.byChunk[chunkFileName] = name
	a.owners[name] = chunkFileName
	return name
}

// sanitize maps every character outside [A-Za-z0-9_] to an underscore so the
// result is valid in an identifier position of the target grammar.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

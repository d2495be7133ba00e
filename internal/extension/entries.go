// SPDX-License-Identifier: MPL-2.0

package extension

import "slices"

// ExpandScripts replaces each script reference that has a flattened
// dependency list with that list, in place, and then removes duplicate files
// keeping the first occurrence. References without a flattened list (scripts
// the bundler never saw) pass through unchanged.
//
// The caller runs this once per execution context: chunks are only unique
// within one shared scope, so the same chunk file legitimately appears in
// both the background list and a content-script list.
func ExpandScripts(scripts []string, deps map[string][]string) []string {
	out := slices.Clone(scripts)

	// Substitute in reverse index order so earlier positions stay valid
	// while later ones are spliced.
	for i := len(out) - 1; i >= 0; i-- {
		flat, ok := deps[out[i]]
		if !ok {
			continue
		}
		spliced := make([]string, 0, len(out)+len(flat)-1)
		spliced = append(spliced, out[:i]...)
		spliced = append(spliced, flat...)
		spliced = append(spliced, out[i+1:]...)
		out = spliced
	}

	seen := make(map[string]bool, len(out))
	deduped := out[:0]
	for _, f := range out {
		if seen[f] {
			continue
		}
		seen[f] = true
		deduped = append(deduped, f)
	}
	return deduped
}

// ExpandManifest applies ExpandScripts to every execution context in the
// manifest.
func ExpandManifest(m *Manifest, deps map[string][]string) {
	if m.Background != nil && m.Background.Scripts != nil {
		m.Background.Scripts = ExpandScripts(m.Background.Scripts, deps)
	}
	for _, cs := range m.ContentScripts {
		if cs.JS != nil {
			cs.JS = ExpandScripts(cs.JS, deps)
		}
	}
}

// SPDX-License-Identifier: MPL-2.0

// Package extension models the browser-extension manifest as the build sees
// it: the background and content-script blocks are decoded into mutable
// script lists, every other field rides along as raw bytes and is written
// back untouched.
package extension

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// NormalizeRef reduces a manifest script reference to the source-relative
// form used to key entry chunks: leading slashes and "./" stripped, dot
// segments resolved.
func NormalizeRef(ref string) string {
	return strings.TrimPrefix(path.Clean(strings.TrimPrefix(ref, "/")), "./")
}

type (
	// Manifest is a parsed manifest.json. Only the script lists are
	// structured; unknown fields are preserved verbatim.
	Manifest struct {
		fields map[string]json.RawMessage

		// Background is nil when the manifest declares no background block.
		Background *Background

		// ContentScripts holds one element per content_scripts block, each
		// of which is its own execution context.
		ContentScripts []*ContentScript
	}

	// Background is the background execution context.
	Background struct {
		fields map[string]json.RawMessage

		// Scripts is the ordered script list; nil when the block has no
		// scripts key.
		Scripts []string
	}

	// ContentScript is one content-script injection context.
	ContentScript struct {
		fields map[string]json.RawMessage

		// JS is the ordered script list; nil when the block has no js key.
		JS []string
	}
)

// ParseManifest decodes manifest.json bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := json.Unmarshal(data, &m.fields); err != nil {
		return nil, fmt.Errorf("malformed manifest: %w", err)
	}

	if raw, ok := m.fields["background"]; ok {
		bg := &Background{}
		if err := json.Unmarshal(raw, &bg.fields); err != nil {
			return nil, fmt.Errorf("malformed background block: %w", err)
		}
		if scripts, ok := bg.fields["scripts"]; ok {
			if err := json.Unmarshal(scripts, &bg.Scripts); err != nil {
				return nil, fmt.Errorf("malformed background.scripts: %w", err)
			}
		}
		m.Background = bg
	}

	if raw, ok := m.fields["content_scripts"]; ok {
		var blocks []json.RawMessage
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return nil, fmt.Errorf("malformed content_scripts: %w", err)
		}
		for i, block := range blocks {
			cs := &ContentScript{}
			if err := json.Unmarshal(block, &cs.fields); err != nil {
				return nil, fmt.Errorf("malformed content_scripts[%d]: %w", i, err)
			}
			if js, ok := cs.fields["js"]; ok {
				if err := json.Unmarshal(js, &cs.JS); err != nil {
					return nil, fmt.Errorf("malformed content_scripts[%d].js: %w", i, err)
				}
			}
			m.ContentScripts = append(m.ContentScripts, cs)
		}
	}

	return m, nil
}

// EntryRefs returns every script reference across all execution contexts,
// de-duplicated, in manifest order. These are the entry points handed to the
// bundler.
func (m *Manifest) EntryRefs() []string {
	var refs []string
	seen := make(map[string]bool)
	add := func(list []string) {
		for _, ref := range list {
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	if m.Background != nil {
		add(m.Background.Scripts)
	}
	for _, cs := range m.ContentScripts {
		add(cs.JS)
	}
	return refs
}

// Encode serializes the manifest, folding the mutated script lists back into
// the raw document. Non-core field values are emitted from the bytes they
// were parsed from.
func (m *Manifest) Encode() ([]byte, error) {
	if m.Background != nil {
		if err := setList(m.Background.fields, "scripts", m.Background.Scripts); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(m.Background.fields)
		if err != nil {
			return nil, err
		}
		m.fields["background"] = raw
	}

	if len(m.ContentScripts) > 0 {
		blocks := make([]json.RawMessage, 0, len(m.ContentScripts))
		for _, cs := range m.ContentScripts {
			if err := setList(cs.fields, "js", cs.JS); err != nil {
				return nil, err
			}
			raw, err := json.Marshal(cs.fields)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, raw)
		}
		raw, err := json.Marshal(blocks)
		if err != nil {
			return nil, err
		}
		m.fields["content_scripts"] = raw
	}

	out, err := json.MarshalIndent(m.fields, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// setList stores a script list under key, keeping the key absent when the
// original block never had one.
func setList(fields map[string]json.RawMessage, key string, list []string) error {
	if list == nil {
		if _, had := fields[key]; !had {
			return nil
		}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if list == nil {
		raw = []byte("[]")
	}
	fields[key] = raw
	return nil
}

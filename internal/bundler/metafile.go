// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/eritbh/exby/internal/chunk"
)

// ArtifactError reports a chunk that produced more than one physical
// artifact. Each chunk must map 1:1 to a script file; anything else (a CSS
// bundle riding along, a stray asset) cannot be linked through a single
// global slot and fails the build.
type ArtifactError struct {
	Chunk     string
	Artifacts []string
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("chunk %q produced multiple artifacts: %s",
		e.Chunk, strings.Join(e.Artifacts, ", "))
}

type (
	metafile struct {
		Inputs  map[string]json.RawMessage `json:"inputs"`
		Outputs map[string]metaOutput      `json:"outputs"`
	}

	metaOutput struct {
		Imports    []metaImport `json:"imports"`
		Exports    []string     `json:"exports"`
		EntryPoint string       `json:"entryPoint"`
		CSSBundle  string       `json:"cssBundle"`
	}

	metaImport struct {
		Path     string `json:"path"`
		Kind     string `json:"kind"`
		External bool   `json:"external"`
	}
)

// graphFromMetafile converts esbuild's metafile into the chunk graph. Output
// keys are namespaced under the virtual outdir; chunk file names are relative
// to it. Key order in the metafile is a JSON object, so outputs are sorted
// for a deterministic graph; load order never depends on this, only on the
// per-chunk import edge order, which the metafile preserves.
func graphFromMetafile(meta string, code map[string]string) (*Result, error) {
	var m metafile
	if err := json.Unmarshal([]byte(meta), &m); err != nil {
		return nil, fmt.Errorf("malformed bundler metafile: %w", err)
	}

	keys := make([]string, 0, len(m.Outputs))
	for k := range m.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	g := chunk.NewGraph()
	var stray []string
	for _, key := range keys {
		out := m.Outputs[key]
		fileName := trimOutdir(key)

		if !strings.HasSuffix(fileName, ".js") {
			stray = append(stray, fileName)
			continue
		}
		if out.CSSBundle != "" {
			return nil, &ArtifactError{
				Chunk:     fileName,
				Artifacts: []string{fileName, trimOutdir(out.CSSBundle)},
			}
		}

		c := &chunk.Chunk{
			FileName: fileName,
			Code:     code[fileName],
		}
		c.ExportedNames = append(c.ExportedNames, out.Exports...)
		for _, imp := range out.Imports {
			if imp.External {
				continue
			}
			switch imp.Kind {
			case "import-statement":
				c.ImportedChunks = append(c.ImportedChunks, trimOutdir(imp.Path))
			case "dynamic-import":
				return nil, fmt.Errorf("chunk %q uses dynamic import, which cannot be linked statically", fileName)
			}
		}
		if out.EntryPoint != "" {
			c.IsEntry = true
			c.EntryKey = strings.TrimPrefix(out.EntryPoint, "./")
		}
		if err := g.Add(c); err != nil {
			return nil, err
		}
	}

	if len(stray) > 0 {
		return nil, fmt.Errorf("bundle emitted non-script artifacts: %s", strings.Join(stray, ", "))
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	inputs := make(map[string]bool, len(m.Inputs))
	for in := range m.Inputs {
		inputs[strings.TrimPrefix(in, "./")] = true
	}

	return &Result{Graph: g, Inputs: inputs}, nil
}

func trimOutdir(p string) string {
	return strings.TrimPrefix(p, outdirName+"/")
}

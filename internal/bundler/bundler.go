// SPDX-License-Identifier: MPL-2.0

// Package bundler is the boundary to the upstream bundler (esbuild). It runs
// one code-splitting build over the manifest's entry points and converts the
// result into the typed chunk graph the linker consumes. Nothing is written
// to disk here; chunk contents stay in memory until the whole build is known
// to succeed.
package bundler

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/eritbh/exby/internal/chunk"
)

// outdirName is the virtual output directory passed to esbuild. The build
// never writes, so the name only serves to namespace output paths in the
// metafile.
const outdirName = "__exby_out__"

// defaultChunkNames controls where shared chunks land relative to the output
// root.
const defaultChunkNames = "chunks/[name]-[hash]"

type (
	// Options configures one bundling pass.
	Options struct {
		// SourceDir is the extension source root (where manifest.json lives).
		SourceDir string

		// EntryPoints are the manifest's script references, relative to
		// SourceDir.
		EntryPoints []string

		// Target is the language target (e.g. "es2017"); empty means
		// esbuild's default.
		Target string

		// Minify shortens identifiers and syntax. Whitespace is left intact
		// because the linker's declaration scanner is line oriented.
		Minify bool

		// ChunkNames overrides the shared-chunk naming template.
		ChunkNames string
	}

	// Result is the bundling outcome handed to the rest of the pipeline.
	Result struct {
		// Graph is the validated chunk graph.
		Graph *chunk.Graph

		// Inputs is the set of source-relative files the bundle consumed.
		// The asset-copy stage skips these.
		Inputs map[string]bool
	}
)

// Bundle runs esbuild over the entry points and builds the chunk graph.
func Bundle(opts Options) (*Result, error) {
	absSource, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, err
	}

	chunkNames := opts.ChunkNames
	if chunkNames == "" {
		chunkNames = defaultChunkNames
	}
	target, err := resolveTarget(opts.Target)
	if err != nil {
		return nil, err
	}

	buildOpts := api.BuildOptions{
		AbsWorkingDir: absSource,
		EntryPoints:   opts.EntryPoints,
		Bundle:        true,
		Splitting:     true,
		Format:        api.FormatESModule,
		Outdir:        outdirName,
		Outbase:       absSource,
		EntryNames:    "[dir]/[name]",
		ChunkNames:    chunkNames,
		Target:        target,
		Write:         false,
		Metafile:      true,
		LogLevel:      api.LogLevelSilent,
	}
	if opts.Minify {
		buildOpts.MinifyIdentifiers = true
		buildOpts.MinifySyntax = true
	}

	res := api.Build(buildOpts)
	if len(res.Errors) > 0 {
		return nil, buildError(res.Errors)
	}

	code := make(map[string]string, len(res.OutputFiles))
	outRoot := filepath.Join(absSource, outdirName)
	for _, f := range res.OutputFiles {
		rel, err := filepath.Rel(outRoot, f.Path)
		if err != nil {
			return nil, fmt.Errorf("output %q outside output root: %w", f.Path, err)
		}
		code[filepath.ToSlash(rel)] = string(f.Contents)
	}

	return graphFromMetafile(res.Metafile, code)
}

// ErrBundle marks failures reported by the upstream bundler itself, as
// opposed to graph or artifact problems found afterwards.
var ErrBundle = errors.New("bundling failed")

// buildError folds esbuild diagnostics into one error, keeping file/position
// context for each message.
func buildError(msgs []api.Message) error {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s",
				m.Location.File, m.Location.Line, m.Location.Column, m.Text))
		} else {
			lines = append(lines, m.Text)
		}
	}
	return fmt.Errorf("%w:\n%s", ErrBundle, strings.Join(lines, "\n"))
}

func resolveTarget(name string) (api.Target, error) {
	switch strings.ToLower(name) {
	case "":
		return api.DefaultTarget, nil
	case "esnext":
		return api.ESNext, nil
	case "es2015":
		return api.ES2015, nil
	case "es2016":
		return api.ES2016, nil
	case "es2017":
		return api.ES2017, nil
	case "es2018":
		return api.ES2018, nil
	case "es2019":
		return api.ES2019, nil
	case "es2020":
		return api.ES2020, nil
	case "es2021":
		return api.ES2021, nil
	case "es2022":
		return api.ES2022, nil
	default:
		return api.DefaultTarget, fmt.Errorf("unknown language target %q", name)
	}
}

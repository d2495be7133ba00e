// SPDX-License-Identifier: MPL-2.0

// Package build orchestrates a whole extension build: manifest in, bundled
// and rewritten scripts plus mutated manifest out. Every stage runs fully in
// memory; the destination filesystem is only touched after the last stage
// succeeded, and never when a destination already exists.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/eritbh/exby/internal/bundler"
	"github.com/eritbh/exby/internal/chunk"
	"github.com/eritbh/exby/internal/config"
	"github.com/eritbh/exby/internal/extension"
	"github.com/eritbh/exby/internal/issue"
	"github.com/eritbh/exby/internal/linker"
	"github.com/eritbh/exby/internal/slot"
)

// ManifestName is the manifest file expected at the source root.
const ManifestName = "manifest.json"

// Options configures one build invocation.
type Options struct {
	// SourceDir is the extension source root.
	SourceDir string

	// Destinations are the output targets. A target ending in ".zip"
	// receives a packed archive, anything else a directory tree. None may
	// exist before the build.
	Destinations []string

	// Config overrides the configuration loaded from the source directory
	// when non-nil.
	Config *config.Config

	// Logger receives progress output; nil means a default stderr logger.
	Logger *log.Logger
}

// Run executes the build. On error, nothing has been written to any
// destination.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "exby"})
	}
	logger = logger.With("build", uuid.NewString()[:8])

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.SourceDir)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	manifest, err := LoadManifest(opts.SourceDir)
	if err != nil {
		return err
	}
	entryRefs := manifest.EntryRefs()
	logger.Debug("manifest loaded", "entries", len(entryRefs))

	// All destinations are checked up front, before anything is produced,
	// so a failed build can never half-overwrite a previous one. Only a
	// confirmed not-exist counts as free; any other stat failure means the
	// destination cannot be trusted and stops the build here.
	for _, dest := range opts.Destinations {
		switch _, err := os.Lstat(dest); {
		case err == nil:
			return issue.NewErrorContext().
				WithOperation("prepare destination").
				WithResource(dest).
				WithSuggestion("Remove the existing path or pick a fresh destination").
				Build()
		case !errors.Is(err, fs.ErrNotExist):
			return issue.NewErrorContext().
				WithOperation("prepare destination").
				WithResource(dest).
				Wrap(err).
				Build()
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	graph, inputs, err := bundleEntries(cfg, opts.SourceDir, entryRefs)
	if err != nil {
		return err
	}
	logger.Debug("bundled", "chunks", graph.Len())

	rewritten, err := rewriteAll(graph, logger)
	if err != nil {
		return err
	}

	deps := make(map[string][]string, len(entryRefs))
	for _, ref := range entryRefs {
		entry, _ := graph.Entry(extension.NormalizeRef(ref))
		flat, err := linker.Flatten(entry, graph)
		if err != nil {
			return err
		}
		deps[ref] = flat
		logger.Debug("flattened entry", "entry", ref, "files", len(flat))
	}
	extension.ExpandManifest(manifest, deps)

	manifestBytes, err := manifest.Encode()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	files, err := collectFiles(opts.SourceDir, cfg, rewritten, manifestBytes, inputs)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, dest := range opts.Destinations {
		if strings.HasSuffix(dest, ".zip") {
			err = writeZip(dest, files)
		} else {
			err = writeDir(dest, files)
		}
		if err != nil {
			return issue.NewErrorContext().
				WithOperation("write output").
				WithResource(dest).
				Wrap(err).
				Build()
		}
		logger.Info("wrote destination", "dest", dest, "files", len(files))
	}
	return nil
}

// LoadManifest reads and parses sourceDir/manifest.json, attaching actionable
// context on failure. Shared by the build pipeline and the read-only graph
// command.
func LoadManifest(sourceDir string) (*extension.Manifest, error) {
	manifestPath := filepath.Join(sourceDir, ManifestName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load manifest").
			WithResource(manifestPath).
			WithSuggestion("Point exby at the directory containing manifest.json").
			WithSuggestion("Run 'exby init' to scaffold a source directory").
			Wrap(err).
			Build()
	}
	m, err := extension.ParseManifest(data)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load manifest").
			WithResource(manifestPath).
			Wrap(err).
			Build()
	}
	return m, nil
}

// bundleEntries runs the upstream bundler. A manifest without script entries
// is legal; it produces an empty graph and the build degrades to an asset
// copy.
func bundleEntries(cfg *config.Config, sourceDir string, entryRefs []string) (*chunk.Graph, map[string]bool, error) {
	if len(entryRefs) == 0 {
		return chunk.NewGraph(), map[string]bool{}, nil
	}

	entryPoints := make([]string, len(entryRefs))
	for i, ref := range entryRefs {
		entryPoints[i] = extension.NormalizeRef(ref)
	}
	res, err := bundler.Bundle(bundler.Options{
		SourceDir:   sourceDir,
		EntryPoints: entryPoints,
		Target:      cfg.Target,
		Minify:      cfg.Minify,
		ChunkNames:  cfg.ChunkNames,
	})
	if err != nil {
		return nil, nil, err
	}
	return res.Graph, res.Inputs, nil
}

// rewriteAll links every chunk against the shared-scope slots. Rewrites are
// independent once the graph is fixed, so they run in parallel; the slot
// allocator is the only shared state and serializes internally.
func rewriteAll(graph *chunk.Graph, logger *log.Logger) (map[string]string, error) {
	chunks := graph.Chunks()
	alloc := slot.NewAllocator()
	outputs := make([]string, len(chunks))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	for i, c := range chunks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			out, err := linker.Rewrite(c, graph, alloc)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			outputs[i] = out
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	rewritten := make(map[string]string, len(chunks))
	for i, c := range chunks {
		rewritten[c.FileName] = outputs[i]
		logger.Debug("rewrote chunk", "chunk", c.FileName)
	}
	return rewritten, nil
}

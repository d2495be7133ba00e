// SPDX-License-Identifier: MPL-2.0

package build

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/eritbh/exby/internal/config"
)

// fileSet maps slash-separated destination-relative paths to file contents.
type fileSet map[string][]byte

// collectFiles assembles the complete output: every rewritten chunk, the
// mutated manifest, and all assets. Assets are the source files the bundle
// did not consume, minus the manifest, the build configuration, and anything
// matched by the ignore patterns.
func collectFiles(sourceDir string, cfg *config.Config, rewritten map[string]string, manifest []byte, inputs map[string]bool) (fileSet, error) {
	files := make(fileSet, len(rewritten)+1)
	for name, code := range rewritten {
		files[name] = []byte(code)
	}
	files[ManifestName] = manifest

	srcFS := os.DirFS(sourceDir)
	err := fs.WalkDir(srcFS, ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if ignored(cfg.IgnoreAssets, rel) {
				return fs.SkipDir
			}
			return nil
		}
		if rel == ManifestName || rel == config.FileName {
			return nil
		}
		if inputs[rel] || ignored(cfg.IgnoreAssets, rel) {
			return nil
		}
		if _, taken := files[rel]; taken {
			return fmt.Errorf("asset %q collides with a generated chunk file", rel)
		}
		data, err := fs.ReadFile(srcFS, rel)
		if err != nil {
			return err
		}
		files[rel] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ignored reports whether rel or one of its ancestor directories matches an
// ignore pattern. Patterns use path.Match syntax against slash-separated
// source-relative paths.
func ignored(patterns []string, rel string) bool {
	for _, p := range patterns {
		for probe := rel; probe != "." && probe != "/"; probe = path.Dir(probe) {
			if ok, _ := path.Match(p, probe); ok {
				return true
			}
		}
	}
	return false
}

func sortedPaths(files fileSet) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func writeDir(dest string, files fileSet) error {
	for _, rel := range sortedPaths(files) {
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, files[rel], 0o644); err != nil {
			return err
		}
	}
	return nil
}

func writeZip(dest string, files fileSet) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, rel := range sortedPaths(files) {
		entry, err := w.Create(rel)
		if err != nil {
			return err
		}
		if _, err := entry.Write(files[rel]); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

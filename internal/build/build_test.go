// SPDX-License-Identifier: MPL-2.0

package build

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eritbh/exby/internal/issue"
)

// writeSource lays out a small two-context extension whose entry points share
// one module, forcing the bundler to split a common chunk.
func writeSource(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	files := map[string]string{
		"manifest.json": `{
			"manifest_version": 2,
			"name": "fixture",
			"version": "1.0",
			"background": {"scripts": ["background.js"], "persistent": false},
			"content_scripts": [{"matches": ["<all_urls>"], "js": ["content.js"]}]
		}`,
		"background.js": `import { greet } from "./lib/shared.js";
console.log(greet("background"));
`,
		"content.js": `import { greet } from "./lib/shared.js";
console.log(greet("content"));
`,
		"lib/shared.js": `export function greet(name) {
  return "hi " + name;
}
`,
		"icon.png": "\x89PNG fake",
		"notes.md": "internal notes",
	}
	for rel, content := range files {
		target := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return src
}

func readManifest(t *testing.T, dest string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dest, "manifest.json"))
	if err != nil {
		t.Fatalf("read output manifest: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output manifest is not valid JSON: %v", err)
	}
	return m
}

func scriptList(t *testing.T, v any) []string {
	t.Helper()
	raw, ok := v.([]any)
	if !ok {
		t.Fatalf("script list has unexpected shape: %v", v)
	}
	out := make([]string, len(raw))
	for i, s := range raw {
		out[i] = s.(string)
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	src := writeSource(t)
	dest := filepath.Join(t.TempDir(), "dist")

	if err := Run(context.Background(), Options{
		SourceDir:    src,
		Destinations: []string{dest},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	m := readManifest(t, dest)
	bg := scriptList(t, m["background"].(map[string]any)["scripts"])
	if len(bg) != 2 {
		t.Fatalf("background scripts = %v, want shared chunk plus entry", bg)
	}
	if !strings.HasPrefix(bg[0], "chunks/") {
		t.Errorf("first background script %q should be the shared chunk", bg[0])
	}
	if bg[len(bg)-1] != "background.js" {
		t.Errorf("entry chunk %q should load last", bg[len(bg)-1])
	}

	cs := scriptList(t, m["content_scripts"].([]any)[0].(map[string]any)["js"])
	if len(cs) != 2 || cs[0] != bg[0] || cs[1] != "content.js" {
		t.Errorf("content scripts = %v, want [%s content.js]", cs, bg[0])
	}

	// Every listed script exists and carries no module syntax.
	for _, rel := range append(append([]string{}, bg...), cs...) {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("listed script %q not written: %v", rel, err)
		}
		code := string(data)
		if strings.Contains(code, "import ") || strings.Contains(code, "export ") {
			t.Errorf("script %q still contains module syntax:\n%s", rel, code)
		}
	}

	// The shared chunk and the background entry agree on the slot variable.
	chunkCode, _ := os.ReadFile(filepath.Join(dest, filepath.FromSlash(bg[0])))
	bgCode, _ := os.ReadFile(filepath.Join(dest, "background.js"))
	slotName := "__exby_" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, bg[0]) + "__"
	if !strings.Contains(string(chunkCode), slotName) {
		t.Errorf("shared chunk does not declare slot %q", slotName)
	}
	if !strings.Contains(string(bgCode), slotName) {
		t.Errorf("background entry does not read slot %q", slotName)
	}

	// Assets ride along untouched; bundled sources do not.
	if _, err := os.Stat(filepath.Join(dest, "icon.png")); err != nil {
		t.Error("icon.png not copied")
	}
	if _, err := os.Stat(filepath.Join(dest, "lib", "shared.js")); err == nil {
		t.Error("bundled source lib/shared.js leaked into the output")
	}
}

func TestRun_DestinationExistsMeansZeroWrites(t *testing.T) {
	src := writeSource(t)
	freshDest := filepath.Join(t.TempDir(), "dist")
	takenDest := t.TempDir() // exists already

	err := Run(context.Background(), Options{
		SourceDir:    src,
		Destinations: []string{freshDest, takenDest},
	})
	if err == nil {
		t.Fatal("Run into existing destination succeeded, want failure")
	}
	var actionable *issue.ActionableError
	if !errors.As(err, &actionable) {
		t.Errorf("error %v is not actionable", err)
	}
	// The check covers all destinations before the first write: the fresh
	// one must be untouched too.
	if _, statErr := os.Stat(freshDest); !os.IsNotExist(statErr) {
		t.Error("fresh destination was written despite the failed check")
	}
}

func TestRun_MissingManifest(t *testing.T) {
	err := Run(context.Background(), Options{
		SourceDir:    t.TempDir(),
		Destinations: []string{filepath.Join(t.TempDir(), "dist")},
	})
	if err == nil {
		t.Fatal("Run without manifest succeeded, want failure")
	}
	if !strings.Contains(err.Error(), "load manifest") {
		t.Errorf("error %q should point at the manifest", err)
	}
}

func TestRun_ZipDestination(t *testing.T) {
	src := writeSource(t)
	dest := filepath.Join(t.TempDir(), "out.zip")

	if err := Run(context.Background(), Options{
		SourceDir:    src,
		Destinations: []string{dest},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	r, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer r.Close()

	names := make(map[string]bool, len(r.File))
	for _, f := range r.File {
		names[f.Name] = true
	}
	for _, want := range []string{"manifest.json", "background.js", "content.js", "icon.png"} {
		if !names[want] {
			t.Errorf("archive missing %q (has %v)", want, names)
		}
	}
}

func TestRun_IgnoreAssets(t *testing.T) {
	src := writeSource(t)
	if err := os.WriteFile(filepath.Join(src, "exby.toml"), []byte("ignore_assets = [\"*.md\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "dist")

	if err := Run(context.Background(), Options{
		SourceDir:    src,
		Destinations: []string{dest},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "notes.md")); err == nil {
		t.Error("ignored asset notes.md was copied")
	}
	if _, err := os.Stat(filepath.Join(dest, "exby.toml")); err == nil {
		t.Error("build configuration leaked into the output")
	}
}

func TestRun_NoScriptEntries(t *testing.T) {
	src := t.TempDir()
	manifest := `{"manifest_version": 2, "name": "static", "version": "1.0"}`
	if err := os.WriteFile(filepath.Join(src, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "style.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "dist")

	if err := Run(context.Background(), Options{
		SourceDir:    src,
		Destinations: []string{dest},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "style.css")); err != nil {
		t.Error("asset-only build did not copy style.css")
	}
	m := readManifest(t, dest)
	if m["name"] != "static" {
		t.Errorf("manifest fields lost: %v", m)
	}
}

func TestRun_UnstatableDestinationStopsBuild(t *testing.T) {
	src := writeSource(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A path routed through a regular file cannot be stat'd as not-exist;
	// the pre-check must refuse it instead of treating it as free.
	badDest := filepath.Join(blocker, "dist")
	freshDest := filepath.Join(t.TempDir(), "dist")

	err := Run(context.Background(), Options{
		SourceDir:    src,
		Destinations: []string{freshDest, badDest},
	})
	if err == nil {
		t.Fatal("Run with an unstatable destination succeeded, want failure")
	}
	if !strings.Contains(err.Error(), "prepare destination") {
		t.Errorf("error %q should come from the destination pre-check", err)
	}
	if _, statErr := os.Stat(freshDest); !os.IsNotExist(statErr) {
		t.Error("fresh destination was written despite the failed check")
	}
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadManifest(t.TempDir())
		if err == nil {
			t.Fatal("LoadManifest on empty dir succeeded, want failure")
		}
		var actionable *issue.ActionableError
		if !errors.As(err, &actionable) {
			t.Errorf("error %v is not actionable", err)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("error %v should expose fs.ErrNotExist", err)
		}
	})

	t.Run("valid manifest", func(t *testing.T) {
		t.Parallel()
		src := writeSource(t)
		m, err := LoadManifest(src)
		if err != nil {
			t.Fatalf("LoadManifest: %v", err)
		}
		refs := m.EntryRefs()
		if len(refs) != 2 || refs[0] != "background.js" || refs[1] != "content.js" {
			t.Errorf("EntryRefs = %v", refs)
		}
	})
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	initForce bool

	// initCmd scaffolds an extension source directory.
	initCmd = &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold a new extension source directory",
		Long: `Create a starter extension source directory with a manifest, a background
script, and a build configuration file. The directory defaults to the
current one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
}

var scaffold = map[string]string{
	"manifest.json": `{
  "manifest_version": 2,
  "name": "my-extension",
  "version": "0.1.0",
  "background": {
    "scripts": ["background.js"],
    "persistent": false
  }
}
`,
	"background.js": `import { onStartup } from "./lib/startup.js";

onStartup(() => {
	console.log("extension loaded");
});
`,
	"lib/startup.js": `export function onStartup(callback) {
	callback();
}
`,
	"exby.toml": `# Build settings for exby. Every key is optional.
#
# target = "es2017"
# minify = false
# chunk_names = "chunks/[name]-[hash]"
# ignore_assets = ["*.md"]
`,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if !initForce {
		for name := range scaffold {
			target := filepath.Join(dir, filepath.FromSlash(name))
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("file '%s' already exists. Use --force to overwrite", target)
			}
		}
	}

	for name, content := range scaffold {
		target := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
	}

	absPath, _ := filepath.Abs(dir)
	fmt.Printf("%s Created extension source in %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Edit manifest.json and add your scripts")
	fmt.Println("  2. Run 'exby build " + dir + " dist' to build")
	fmt.Println("  3. Load the dist/ directory as an unpacked extension")

	return nil
}

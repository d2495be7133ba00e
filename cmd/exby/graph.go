// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eritbh/exby/internal/build"
	"github.com/eritbh/exby/internal/bundler"
	"github.com/eritbh/exby/internal/config"
	"github.com/eritbh/exby/internal/extension"
	"github.com/eritbh/exby/internal/linker"
)

// graphCmd shows the resolved load order without writing anything.
var graphCmd = &cobra.Command{
	Use:   "graph <source>",
	Short: "Show the flattened load order for each manifest entry point",
	Long: `Bundle the extension rooted at <source> and print, for each script the
manifest references, the full list of chunk files in the order they
would be loaded. Nothing is written to disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := config.Load(source)
	if err != nil {
		return graphFailure(err)
	}

	manifest, err := build.LoadManifest(source)
	if err != nil {
		return graphFailure(err)
	}

	entryRefs := manifest.EntryRefs()
	if len(entryRefs) == 0 {
		fmt.Println(SubtitleStyle.Render("The manifest references no scripts."))
		return nil
	}

	entryPoints := make([]string, len(entryRefs))
	for i, ref := range entryRefs {
		entryPoints[i] = extension.NormalizeRef(ref)
	}
	res, err := bundler.Bundle(bundler.Options{
		SourceDir:   source,
		EntryPoints: entryPoints,
		Target:      cfg.Target,
		ChunkNames:  cfg.ChunkNames,
	})
	if err != nil {
		return graphFailure(err)
	}

	for _, ref := range entryRefs {
		fmt.Println(TitleStyle.Render(ref))
		entry, ok := res.Graph.Entry(extension.NormalizeRef(ref))
		if !ok {
			fmt.Println(SubtitleStyle.Render("  (not produced by the bundler)"))
			continue
		}
		flat, err := linker.Flatten(entry, res.Graph)
		if err != nil {
			return graphFailure(err)
		}
		for _, file := range flat {
			fmt.Printf("  %s\n", FileStyle.Render(file))
		}
	}
	return nil
}

func graphFailure(err error) error {
	id, msg := classifyBuildError(err, verbose)
	fmt.Fprintln(os.Stderr, msg)
	if entry := lookupIssue(id); entry != nil {
		rendered, _ := entry.Render("dark")
		fmt.Fprintln(os.Stderr, rendered)
	}
	return &ExitError{Code: 1, Err: err}
}

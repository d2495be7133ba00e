// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/eritbh/exby/internal/build"
	"github.com/eritbh/exby/internal/config"
)

var (
	buildMinify     bool
	buildTarget     string
	buildChunkNames string

	// buildCmd bundles, links, and writes an extension.
	buildCmd = &cobra.Command{
		Use:   "build <source> <destination>...",
		Short: "Build an extension source directory into one or more destinations",
		Long: `Build the extension rooted at <source> into every listed destination.

A destination ending in .zip receives a packed archive; anything else a
directory tree. No destination may exist before the build, and a failed
build writes nothing.

Settings come from exby.toml in the source directory; flags override
individual settings for one invocation.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().BoolVar(&buildMinify, "minify", false, "shorten identifiers and syntax in bundled code")
	buildCmd.Flags().StringVar(&buildTarget, "target", "", "language target, e.g. es2017")
	buildCmd.Flags().StringVar(&buildChunkNames, "chunk-names", "", "naming template for shared chunks")
}

func runBuild(cmd *cobra.Command, args []string) error {
	source := args[0]
	destinations := args[1:]

	cfg, err := config.Load(source)
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}
	if cmd.Flags().Changed("minify") {
		cfg.Minify = buildMinify
	}
	if cmd.Flags().Changed("target") {
		cfg.Target = buildTarget
	}
	if cmd.Flags().Changed("chunk-names") {
		cfg.ChunkNames = buildChunkNames
	}

	logOpts := log.Options{Prefix: "exby"}
	if verbose {
		logOpts.Level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, logOpts)

	err = build.Run(cmd.Context(), build.Options{
		SourceDir:    source,
		Destinations: destinations,
		Config:       cfg,
		Logger:       logger,
	})
	if err != nil {
		id, msg := classifyBuildError(err, verbose)
		fmt.Fprintln(os.Stderr, msg)
		if entry := lookupIssue(id); entry != nil {
			rendered, _ := entry.Render("dark")
			fmt.Fprintln(os.Stderr, rendered)
		}
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Printf("%s Built %s\n", SuccessStyle.Render("✓"), strings.Join(destinations, ", "))
	return nil
}

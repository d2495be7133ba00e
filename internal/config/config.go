// SPDX-License-Identifier: MPL-2.0

// Package config loads the optional per-project build configuration. An
// exby.toml next to the manifest tunes the bundling pass; a missing file
// means defaults. User files are validated against an embedded CUE schema
// before use so typos fail loudly instead of being silently ignored.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/eritbh/exby/internal/issue"
)

// FileName is the configuration file looked up in the source directory.
const FileName = "exby.toml"

//go:embed config_schema.cue
var configSchema string

// Config holds the tunable build settings.
type Config struct {
	// Target is the language target handed to the bundler ("es2017",
	// "esnext", ...); empty uses the bundler default.
	Target string `mapstructure:"target"`

	// Minify shortens identifiers and syntax in bundled chunks.
	Minify bool `mapstructure:"minify"`

	// ChunkNames is the naming template for shared chunks.
	ChunkNames string `mapstructure:"chunk_names"`

	// IgnoreAssets lists glob patterns of source files excluded from the
	// asset copy, relative to the source directory.
	IgnoreAssets []string `mapstructure:"ignore_assets"`
}

// Default returns the configuration used when no exby.toml exists.
func Default() Config {
	return Config{
		ChunkNames: "chunks/[name]-[hash]",
	}
}

// Load reads sourceDir/exby.toml, falling back to defaults when the file is
// absent.
func Load(sourceDir string) (*Config, error) {
	path := filepath.Join(sourceDir, FileName)

	v := viper.New()
	defaults := Default()
	v.SetDefault("target", defaults.Target)
	v.SetDefault("minify", defaults.Minify)
	v.SetDefault("chunk_names", defaults.ChunkNames)
	v.SetDefault("ignore_assets", defaults.IgnoreAssets)

	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := defaults
			return &cfg, nil
		}
		return nil, issue.NewErrorContext().
			WithOperation("load build configuration").
			WithResource(path).
			WithSuggestion("Check the TOML syntax of exby.toml").
			Wrap(err).
			Build()
	}

	if err := validate(v.AllSettings(), path); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load build configuration").
			WithResource(path).
			Wrap(err).
			Build()
	}
	return &cfg, nil
}

// validate unifies the loaded settings with the #Config schema so unknown
// keys and wrong types are rejected with CUE's field-level messages.
func validate(settings map[string]any, path string) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(configSchema)
	if schema.Err() != nil {
		return fmt.Errorf("internal error: config schema does not compile: %w", schema.Err())
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(settings))
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return issue.NewErrorContext().
			WithOperation("validate build configuration").
			WithResource(path).
			WithSuggestion("Supported keys: target, minify, chunk_names, ignore_assets").
			Wrap(errors.New(cueerrors.Details(err, nil))).
			Build()
	}
	return nil
}

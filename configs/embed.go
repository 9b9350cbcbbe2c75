// Package configs provides the embedded configuration template for docarchive.
//
// The template is embedded at build time so `docarchive config init` works
// from source builds and binary releases alike.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config (~/.config/docarchive/config.yaml)
//  3. Project config (.docarchive.yaml)
//  4. Environment variables (DOCARCHIVE_*)
package configs

import _ "embed"

// UserConfigTemplate is the template written by `docarchive config init`
// to ~/.config/docarchive/config.yaml.
//
//go:embed config.example.yaml
var UserConfigTemplate string

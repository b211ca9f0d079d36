// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Command gen-schema generates the config JSON Schema file.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sharegate/sharegate/internal/config"
	"github.com/sharegate/sharegate/internal/xdg"
)

func main() {
	if err := run(filepath.Join("schemas", "config.schema.json")); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	if err := xdg.EnsureDir(filepath.Dir(outPath)); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	fmt.Printf("Generated %s\n", outPath)
	return nil
}

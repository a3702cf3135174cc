// Package licensecheck verifies that source files carry the project's
// license header block.
package licensecheck

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultHeader is the header block sources are expected to carry when no
// override is configured.
const DefaultHeader = `// -----------------------------------------------------------------------------
// Copyright (c) Subsea Labs. All rights reserved.
// Licensed under the MIT License. See LICENSE in the project root for
// license information.
// -----------------------------------------------------------------------------
`

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{".git", "vendor", "node_modules"}

// Checker scans a file tree for sources missing the license header.
type Checker struct {
	// Root of the tree to scan.
	Root string
	// Header is the exact block every scanned file must contain.
	// Defaults to DefaultHeader.
	Header string
	// Extensions selects the files to scan. Defaults to [".go"].
	Extensions []string
	// SkipDirs are directory names to skip, in addition to DefaultSkipDirs.
	SkipDirs []string
}

func (c *Checker) header() string {
	if c.Header != "" {
		return c.Header
	}
	return DefaultHeader
}

func (c *Checker) extensions() []string {
	if len(c.Extensions) > 0 {
		return c.Extensions
	}
	return []string{".go"}
}

func (c *Checker) skip(dir string) bool {
	return slices.Contains(DefaultSkipDirs, dir) || slices.Contains(c.SkipDirs, dir)
}

// Run walks the tree and returns the files that do not contain the header
// block. An empty file counts as missing the header.
func (c *Checker) Run() ([]string, error) {
	header := c.header()
	exts := c.extensions()

	var missing []string
	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != c.Root && c.skip(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !slices.Contains(exts, filepath.Ext(path)) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if !strings.Contains(string(data), header) {
			missing = append(missing, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return missing, nil
}

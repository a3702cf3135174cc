package licensecheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/stretchr/testify/require"
)

const testHeader = `// Copyright (c) Test Co.
// Licensed under the MIT License.
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestChecker_Run(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "good.go"), testHeader+"\npackage good\n")
	writeFile(t, filepath.Join(root, "bad.go"), "package bad\n")
	writeFile(t, filepath.Join(root, "empty.go"), "")
	writeFile(t, filepath.Join(root, "ignored.txt"), "no header, wrong extension\n")
	writeFile(t, filepath.Join(root, "sub", "nested.go"), "package sub\n")
	writeFile(t, filepath.Join(root, "vendor", "dep.go"), "package dep\n")
	writeFile(t, filepath.Join(root, ".git", "hook.go"), "package hook\n")

	checker := &Checker{Root: root, Header: testHeader}
	missing, err := checker.Run()
	assert.NoError(t, err)

	want := []string{
		filepath.Join(root, "bad.go"),
		filepath.Join(root, "empty.go"),
		filepath.Join(root, "sub", "nested.go"),
	}
	assert.Equal(t, want, missing)
}

func TestChecker_HeaderMidFileCounts(t *testing.T) {
	root := t.TempDir()
	// The original checker tests containment, not prefix; a header after a
	// build tag still satisfies the check.
	writeFile(t, filepath.Join(root, "tagged.go"), "//go:build linux\n\n"+testHeader+"\npackage tagged\n")

	checker := &Checker{Root: root, Header: testHeader}
	missing, err := checker.Run()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(missing))
}

func TestChecker_CleanTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), testHeader+"\npackage a\n")

	checker := &Checker{Root: root, Header: testHeader}
	missing, err := checker.Run()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(missing))
}

func TestChecker_CustomExtensionsAndSkips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "script.py"), "print('hi')\n")
	writeFile(t, filepath.Join(root, "build", "gen.py"), "print('hi')\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")

	checker := &Checker{
		Root:       root,
		Header:     testHeader,
		Extensions: []string{".py"},
		SkipDirs:   []string{"build"},
	}
	missing, err := checker.Run()
	assert.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "script.py")}, missing)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rawbytedev/cpod/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(strings.NewReader(""), out, &bytes.Buffer{}, []string{"-h"})
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_CompileThenDump(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "mesh.h")
	bin := filepath.Join(dir, "mesh.cpod")
	require.NoError(t, os.WriteFile(src, []byte("#pragma once\nusing namespace std;\nvector<int> ids = {3, 1};\n"), 0o600))

	errW := &bytes.Buffer{}
	require.NoError(t, run(nil, &bytes.Buffer{}, errW, []string{"compile", "-zstd", "-o", bin, "-log-level", "info", src}))
	require.Contains(t, errW.String(), "Archive compiled.")

	out := &bytes.Buffer{}
	require.NoError(t, run(nil, out, &bytes.Buffer{}, []string{"dump", bin}))
	require.Equal(t, "std::vector<int>ids[2]={3,1};\n", out.String())
}

func TestRun_UsageErrorsCarryExitCode(t *testing.T) {
	t.Parallel()

	err := run(nil, &bytes.Buffer{}, &bytes.Buffer{}, []string{"frobnicate", "x"})
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)

	err = run(nil, &bytes.Buffer{}, &bytes.Buffer{}, []string{"get", filepath.Join(t.TempDir(), "missing")})
	require.ErrorAs(t, err, &exitErr)
}

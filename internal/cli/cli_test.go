package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"github.com/rawbytedev/cpod/pkg/value"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		args           []string
		expectExit     bool
		expectErr      bool
		expectedConfig *Config
		checkOutput    func(t *testing.T, output string)
	}{
		{
			name: "Get with type and format flags",
			args: []string{"get", "-type", "std::vector<int>", "-neat", "-hex", "-upper", "--log-level=debug", "data.h", "ids"},
			expectedConfig: &Config{
				Command:   "get",
				Input:     "data.h",
				Name:      "ids",
				Type:      "std::vector<int>",
				Flags:     value.IntNeatType | value.IntHex | value.IntUpper | value.FloatUpperExp,
				Level:     zstd.SpeedDefault,
				Format:    "text",
				LogLevel:  "debug",
				LogFormat: "text",
			},
		},
		{
			name: "Compile with compression",
			args: []string{"compile", "-zstd", "-level", "best", "-o", "out.cpod", "-"},
			expectedConfig: &Config{
				Command:   "compile",
				Input:     "-",
				Compress:  true,
				Level:     zstd.SpeedBestCompression,
				Output:    "out.cpod",
				Format:    "text",
				LogLevel:  "warn",
				LogFormat: "text",
			},
		},
		{
			name: "Dump as yaml",
			args: []string{"dump", "-format", "YAML", "-log-format", "json", "in.cpod"},
			expectedConfig: &Config{
				Command:   "dump",
				Input:     "in.cpod",
				Level:     zstd.SpeedDefault,
				Format:    "yaml",
				LogLevel:  "warn",
				LogFormat: "json",
			},
		},
		{
			name:       "No arguments prints usage",
			args:       nil,
			expectExit: true,
			checkOutput: func(t *testing.T, output string) {
				require.Contains(t, output, "Usage:")
			},
		},
		{
			name:       "Help flag after command",
			args:       []string{"get", "-h"},
			expectExit: true,
			checkOutput: func(t *testing.T, output string) {
				require.Contains(t, output, "-type")
			},
		},
		{name: "Unknown command", args: []string{"explode", "x"}, expectErr: true},
		{name: "Get needs a name", args: []string{"get", "x"}, expectErr: true},
		{name: "Too many files", args: []string{"normalize", "a", "b"}, expectErr: true},
		{name: "Bad format", args: []string{"dump", "-format", "xml", "x"}, expectErr: true},
		{name: "Bad level", args: []string{"compile", "-level", "max", "x"}, expectErr: true},
		{name: "Bad log level", args: []string{"names", "-log-level", "loud", "x"}, expectErr: true},
		{name: "Bad log format", args: []string{"names", "-log-format", "xml", "x"}, expectErr: true},
		{name: "Type outside get", args: []string{"names", "-type", "int", "x"}, expectErr: true},
		{name: "Unknown flag", args: []string{"names", "-nope", "x"}, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := &bytes.Buffer{}
			cfg, exit, err := Parse(tc.args, out)
			if tc.expectErr {
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				require.Equal(t, 2, exitErr.Code)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expectExit, exit)
			if tc.expectedConfig != nil {
				if diff := cmp.Diff(tc.expectedConfig, cfg); diff != "" {
					t.Errorf("config mismatch (-want +got):\n%s", diff)
				}
			}
			if tc.checkOutput != nil {
				tc.checkOutput(t, out.String())
			}
		})
	}
}

func TestStripDirectives(t *testing.T) {
	t.Parallel()

	src := "#include <vector>\n  #define X 1\nusing namespace std;\nint a = 1; // # not a directive\nstd::string s = \"#x\";"
	want := "\n\n\nint a = 1; // # not a directive\nstd::string s = \"#x\";"
	require.Equal(t, want, StripDirectives(src))
	require.Equal(t, "", StripDirectives(""))
}

const header = `#pragma once
#include <map>
using namespace std;

/* tile map */
map<string, vector<short>> tiles = {
    {"grass", {1, 2}},
    {"water", {}},
};
const double scale = 0.5;
`

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cfg, exit, err := Parse(args, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)
	out := &bytes.Buffer{}
	err = Run(cfg, Streams{In: strings.NewReader(stdin), Out: out, Err: &bytes.Buffer{}})
	return out.String(), err
}

func TestRunTextCommands(t *testing.T) {
	t.Parallel()

	out, err := runCmd(t, header, "normalize", "-")
	require.NoError(t, err)
	require.Equal(t, "map<string,vector<short>>tiles={{\"grass\",{1,2}},{\"water\",{}},};const double scale=0.5;\n", out)

	out, err = runCmd(t, header, "names", "-")
	require.NoError(t, err)
	require.Equal(t, "tiles\nscale\n", out)

	out, err = runCmd(t, header, "get", "-nostd", "-", "tiles")
	require.NoError(t, err)
	require.Equal(t, "map<string,vector<short>>tiles[2]={{\"grass\",{1,2}},{\"water\",{}}};\n", out)

	out, err = runCmd(t, header, "get", "-type", "std::map<std::string,std::vector<int16_t>>", "-neat", "-bin", "-", "tiles")
	require.NoError(t, err)
	require.Equal(t, "std::map<std::string,std::vector<int16_t>>tiles[2]={{\"grass\",{0b1,0b10}},{\"water\",{}}};\n", out)

	out, err = runCmd(t, header, "get", "-sci", "-upper", "-", "scale")
	require.NoError(t, err)
	require.Equal(t, "double scale=5E-01;\n", out)

	_, err = runCmd(t, header, "get", "-type", "int", "-", "scale")
	require.Error(t, err)

	_, err = runCmd(t, header, "get", "-type", "std::vector<", "-", "scale")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
}

func TestRunCompileAndDump(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "tiles.h")
	require.NoError(t, os.WriteFile(src, []byte(header), 0o600))

	for _, compress := range []bool{false, true} {
		bin := filepath.Join(dir, "tiles.cpod")
		args := []string{"compile", "-o", bin, src}
		if compress {
			args = []string{"compile", "-zstd", "-level", "fastest", "-o", bin, src}
		}
		_, err := runCmd(t, "", args...)
		require.NoError(t, err)

		out, err := runCmd(t, "", "dump", "-neat", bin)
		require.NoError(t, err)
		require.Equal(t, "std::map<std::string,std::vector<int16_t>>tiles[2]={{\"grass\",{1,2}},{\"water\",{}}};\ndouble scale=0.5;\n", out)

		out, err = runCmd(t, "", "dump", "-format", "yaml", bin)
		require.NoError(t, err)
		var doc []map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
		require.Len(t, doc, 2)
		require.Equal(t, "tiles", doc[0]["name"])
		require.Equal(t, "std::map<std::string,std::vector<int16_t>>", doc[0]["type"])
		require.Equal(t, 0.5, doc[1]["value"])
	}

	stream, err := runCmd(t, header, "compile", "-")
	require.NoError(t, err)
	out, err := runCmd(t, stream, "dump", "-")
	require.NoError(t, err)
	require.Contains(t, out, "double scale=0.5;")

	_, err = runCmd(t, "CPOD\x01", "dump", "-")
	require.Error(t, err)

	_, err = runCmd(t, "int a = 1", "compile", "-")
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/jwwconv/core/errors"
)

type testCLI struct {
	Config   kong.ConfigFlag `help:"Config file."`
	LogLevel string          `default:"info"`

	Convert struct {
		MaxBlockNesting int `default:"32"`
		ExplodeInserts  bool
		Jobs            int `default:"1"`
		Layers          []string
		DPI             float64 `name:"dpi" default:"1"`
	} `cmd:""`
	Probe struct {
		MaxBlockNesting int `default:"32"`
	} `cmd:""`
}

const sample = `
max_block_nesting = 16
log-level = "debug"

[convert]
jobs = 4
layers = ["A", "B"]
dpi = 2.5
explode-inserts = true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func parse(t *testing.T, path string, args ...string) *testCLI {
	t.Helper()
	var cli testCLI
	parser, err := kong.New(&cli, kong.Configuration(Loader, path))
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return &cli
}

func TestLoad(t *testing.T) {
	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"convert.dpi",
		"convert.explode-inserts",
		"convert.jobs",
		"convert.layers",
		"log-level",
		"max-block-nesting",
	}, f.Keys())

	v, ok := f.Lookup([]string{"convert"}, "jobs")
	require.True(t, ok)
	assert.EqualValues(t, 4, v)

	v, ok = f.Lookup([]string{"convert"}, "max_block_nesting")
	require.True(t, ok)
	assert.EqualValues(t, 16, v)

	_, ok = f.Lookup([]string{"probe"}, "jobs")
	assert.False(t, ok)
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	_, err := Load(strings.NewReader("jobs = = 3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidOption)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIO)
}

func TestResolverFeedsKong(t *testing.T) {
	path := writeConfig(t, sample)

	cli := parse(t, path, "convert")
	assert.Equal(t, "debug", cli.LogLevel)
	assert.Equal(t, 16, cli.Convert.MaxBlockNesting)
	assert.Equal(t, 4, cli.Convert.Jobs)
	assert.True(t, cli.Convert.ExplodeInserts)
	assert.Equal(t, []string{"A", "B"}, cli.Convert.Layers)
	assert.InDelta(t, 2.5, cli.Convert.DPI, 1e-9)

	cli = parse(t, path, "probe")
	assert.Equal(t, 16, cli.Probe.MaxBlockNesting)
}

func TestCommandLineWins(t *testing.T) {
	path := writeConfig(t, sample)
	cli := parse(t, path, "convert", "--jobs", "2", "--max-block-nesting", "3")
	assert.Equal(t, 2, cli.Convert.Jobs)
	assert.Equal(t, 3, cli.Convert.MaxBlockNesting)
}

func TestConfigFlag(t *testing.T) {
	path := writeConfig(t, "[convert]\njobs = 7\n")
	var cli testCLI
	parser, err := kong.New(&cli, kong.Configuration(Loader))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"--config", path, "convert"})
	require.NoError(t, err)
	assert.Equal(t, 7, cli.Convert.Jobs)
}

func TestValidateUnknownKey(t *testing.T) {
	var cli testCLI
	parser, err := kong.New(&cli)
	require.NoError(t, err)

	for _, body := range []string{"colour = 3\n", "[probe]\njobs = 2\n"} {
		f, err := Load(strings.NewReader(body))
		require.NoError(t, err)
		err = f.Validate(parser.Model)
		require.Error(t, err, body)
		assert.ErrorIs(t, err, errors.ErrInvalidOption)
	}

	f, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	assert.NoError(t, f.Validate(parser.Model))
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("HOME", "/home/someone")
	t.Setenv(EnvVar, "")
	assert.Equal(t, []string{filepath.Join("/cfg", "jwwconv", "config.toml")}, Paths())

	t.Setenv(EnvVar, "/etc/jwwconv.toml")
	paths := Paths()
	require.Len(t, paths, 2)
	assert.Equal(t, "/etc/jwwconv.toml", paths[1])
}

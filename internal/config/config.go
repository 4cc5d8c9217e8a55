// Package config loads jwwconv defaults from a TOML file and feeds them to
// kong as a flag resolver.
//
// Keys are flag names. Top-level keys apply to every command that has the
// flag; a table named after a command applies only to that command:
//
//	max-block-nesting = 16
//	log-level = "debug"
//
//	[to-dxf-dir]
//	jobs = 8
//	explode-inserts = true
//
// Underscores are accepted in place of dashes.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pelletier/go-toml/v2"

	"github.com/FocuswithJustin/jwwconv/core/errors"
)

// EnvVar names the environment variable holding a config path.
const EnvVar = "JWWCONV_CONFIG"

// File is a parsed configuration file.
type File struct {
	values map[string]any
}

// Load parses TOML from r.
func Load(r io.Reader) (*File, error) {
	raw := map[string]any{}
	if err := toml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.NewValidation("config", "", fmt.Sprintf("invalid TOML: %v", err))
	}
	f := &File{values: map[string]any{}}
	flatten("", raw, f.values)
	return f, nil
}

// LoadFile parses the TOML file at path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer fh.Close()
	return Load(fh)
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := normalize(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if table, ok := v.(map[string]any); ok {
			flatten(key, table, out)
			continue
		}
		out[key] = v
	}
}

func normalize(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}

// Keys returns the flattened keys in sorted order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Lookup returns the value for flag under the given command path. A
// command-scoped key wins over a top-level one.
func (f *File) Lookup(commands []string, flag string) (any, bool) {
	flag = normalize(flag)
	for i := len(commands); i > 0; i-- {
		if v, ok := f.values[strings.Join(commands[:i], ".")+"."+flag]; ok {
			return v, true
		}
	}
	v, ok := f.values[flag]
	return v, ok
}

// Validate implements kong.Resolver. Every key must name a flag of the
// application, optionally scoped by a command that has it.
func (f *File) Validate(app *kong.Application) error {
	known := map[string]bool{}
	collectFlags(app.Node, nil, known)
	for _, key := range f.Keys() {
		if !known[key] {
			return errors.NewValidation("config", key, "unknown configuration key")
		}
	}
	return nil
}

func collectFlags(n *kong.Node, commands []string, known map[string]bool) {
	if n.Type == kong.CommandNode {
		commands = append(slices.Clone(commands), n.Name)
	}
	for _, fl := range n.Flags {
		known[fl.Name] = true
		if len(commands) > 0 {
			known[strings.Join(commands, ".")+"."+fl.Name] = true
		}
	}
	for _, child := range n.Children {
		collectFlags(child, commands, known)
	}
}

// Resolve implements kong.Resolver. Values are handed to kong as strings
// so that its own mappers do the conversion.
func (f *File) Resolve(_ *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
	v, ok := f.Lookup(commandPath(parent), flag.Name)
	if !ok {
		return nil, nil
	}
	switch val := v.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ","), nil
	case string:
		return val, nil
	default:
		return fmt.Sprint(val), nil
	}
}

func commandPath(p *kong.Path) []string {
	if p == nil {
		return nil
	}
	var names []string
	for n := p.Node(); n != nil; n = n.Parent {
		if n.Type == kong.CommandNode {
			names = append(names, n.Name)
		}
	}
	slices.Reverse(names)
	return names
}

// Loader is a kong.ConfigurationLoader for TOML files.
func Loader(r io.Reader) (kong.Resolver, error) {
	return Load(r)
}

// Paths returns the candidate config files in load order: the per-user
// file, then the file named by $JWWCONV_CONFIG. kong skips missing files
// and lets later files override earlier ones.
func Paths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "jwwconv", "config.toml"))
	}
	if p := os.Getenv(EnvVar); p != "" {
		paths = append(paths, p)
	}
	return paths
}

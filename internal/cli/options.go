package cli

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/zarlcorp/civicid/internal/identicon"
	"github.com/zarlcorp/civicid/internal/metadata"
)

const (
	defaultOutputDir = "./metadata"
	defaultImagesDir = "./images"
	defaultListen    = ":8080"
)

// Options configures a command. Flags take precedence over environment
// variables, which take precedence over defaults.
type Options struct {
	OutputDir string
	ImagesDir string
	Size      int
	BaseURL   string
	Workers   int
	Listen    string

	JSON    bool
	Save    bool
	Verbose bool
}

// valueFlags take an argument, either "--flag value" or "--flag=value".
var valueFlags = []struct {
	name string
	env  string
}{
	{"--out", "CIVICID_OUTPUT_DIR"},
	{"--images", "CIVICID_IMAGES_DIR"},
	{"--size", "CIVICID_SIZE"},
	{"--base-url", "CIVICID_BASE_URL"},
	{"--workers", "CIVICID_WORKERS"},
	{"--listen", "CIVICID_LISTEN"},
}

// ParseOptions reads options from args and getenv. It returns the options
// and the remaining positional arguments.
func ParseOptions(args []string, getenv func(string) string) (Options, []string, error) {
	opts := Options{
		OutputDir: defaultOutputDir,
		ImagesDir: defaultImagesDir,
		Size:      identicon.DefaultSize,
		BaseURL:   metadata.DefaultBaseURL,
		Workers:   runtime.NumCPU(),
		Listen:    defaultListen,
		JSON:      hasFlag(args, "--json"),
		Save:      hasFlag(args, "--save"),
		Verbose:   hasFlag(args, "--verbose") || hasFlag(args, "-v"),
	}

	values, rest, err := splitArgs(args)
	if err != nil {
		return Options{}, nil, err
	}

	for _, f := range valueFlags {
		v, ok := values[f.name]
		if !ok {
			v = getenv(f.env)
		}
		if v == "" {
			continue
		}
		if err := opts.set(f.name, v); err != nil {
			return Options{}, nil, err
		}
	}

	return opts, rest, nil
}

func (o *Options) set(name, v string) error {
	switch name {
	case "--out":
		o.OutputDir = v
	case "--images":
		o.ImagesDir = v
	case "--base-url":
		o.BaseURL = v
	case "--listen":
		o.Listen = v
	case "--size":
		n, err := strconv.Atoi(v)
		if err != nil || n < identicon.MinSize || n > identicon.MaxSize {
			return fmt.Errorf("invalid size %q: want %d to %d", v, identicon.MinSize, identicon.MaxSize)
		}
		o.Size = n
	case "--workers":
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid workers %q: want a positive integer", v)
		}
		o.Workers = n
	}
	return nil
}

// splitArgs separates value flags from positional arguments. Boolean flags
// are dropped; hasFlag reads them.
func splitArgs(args []string) (map[string]string, []string, error) {
	values := make(map[string]string)
	var rest []string

	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			rest = append(rest, a)
			continue
		}

		name, v, hasValue := strings.Cut(a, "=")
		name = strings.ToLower(name)
		if !isValueFlag(name) {
			if !isBoolFlag(name) {
				return nil, nil, fmt.Errorf("unknown flag %q", a)
			}
			continue
		}

		if !hasValue {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("flag %s needs a value", name)
			}
			i++
			v = args[i]
		}
		values[name] = v
	}

	return values, rest, nil
}

func isValueFlag(name string) bool {
	for _, f := range valueFlags {
		if f.name == name {
			return true
		}
	}
	return false
}

func isBoolFlag(name string) bool {
	switch name {
	case "--json", "--save", "--verbose", "-v":
		return true
	}
	return false
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if strings.EqualFold(a, flag) {
			return true
		}
	}
	return false
}

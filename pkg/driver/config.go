// Package driver loads compiler configuration for embedding hosts and
// for cmd/lethec: a YAML config file plus in-source pragma directives,
// merged into compiler.Options.
package driver

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/lethe-lang/lethe/pkg/compiler"
)

// Config is the YAML-loadable compiler configuration.
type Config struct {
	WordSize         int    `yaml:"WordSize"`
	BigEndian        bool   `yaml:"BigEndian"`
	MaxInlineDepth   int    `yaml:"MaxInlineDepth"`
	MaxInlineOpcodes int    `yaml:"MaxInlineOpcodes"`
	WarningsAsErrors bool   `yaml:"WarningsAsErrors"`
	CachePath        string `yaml:"CachePath"`
	EmitDebugInfo    bool   `yaml:"EmitDebugInfo"`
}

// Load reads and decodes the config file at path. Unknown fields are an
// error so a typo'd key fails loudly instead of silently using defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("driver: read config: %w", err)
	}
	return Decode(data)
}

// Decode decodes YAML config bytes.
func Decode(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("driver: decode config: %w", err)
	}
	return cfg, nil
}

// Options converts cfg into compiler.Options.
func (c Config) Options() compiler.Options {
	return compiler.Options{
		WordSize:         c.WordSize,
		BigEndian:        c.BigEndian,
		MaxInlineDepth:   c.MaxInlineDepth,
		MaxInlineOpcodes: c.MaxInlineOpcodes,
		WarningsAsErrors: c.WarningsAsErrors,
		CachePath:        c.CachePath,
		EmitDebugInfo:    c.EmitDebugInfo,
	}
}

// pragmaPrefix introduces an in-source compiler directive:
//
//	#pragma lethec flags "--warnings-as-errors --max-inline-depth 4"
const pragmaPrefix = "#pragma lethec flags"

// ApplyPragmas scans source for pragma directives and merges their
// argv-style flags into cfg, returning the updated config. Pragmas win
// over the file config, matching "closest to the code wins".
func ApplyPragmas(cfg Config, source []byte) (Config, error) {
	sc := bufio.NewScanner(bytes.NewReader(source))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, pragmaPrefix) {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, pragmaPrefix))
		raw = strings.Trim(raw, `"`)
		args, err := shellquote.Split(raw)
		if err != nil {
			return cfg, fmt.Errorf("driver: pragma %q: %w", line, err)
		}
		if cfg, err = applyFlags(cfg, args); err != nil {
			return cfg, err
		}
	}
	return cfg, sc.Err()
}

func applyFlags(cfg Config, args []string) (Config, error) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--warnings-as-errors":
			cfg.WarningsAsErrors = true
		case "--big-endian":
			cfg.BigEndian = true
		case "--emit-debug-info":
			cfg.EmitDebugInfo = true
		case "--max-inline-depth", "--max-inline-opcodes", "--word-size":
			if i+1 >= len(args) {
				return cfg, fmt.Errorf("driver: flag %s needs a value", args[i])
			}
			v, err := strconv.Atoi(args[i+1])
			if err != nil || v < 0 {
				return cfg, fmt.Errorf("driver: flag %s: invalid value %q", args[i], args[i+1])
			}
			switch args[i] {
			case "--max-inline-depth":
				cfg.MaxInlineDepth = v
			case "--max-inline-opcodes":
				cfg.MaxInlineOpcodes = v
			case "--word-size":
				cfg.WordSize = v
			}
			i++
		default:
			return cfg, fmt.Errorf("driver: unknown pragma flag %q", args[i])
		}
	}
	return cfg, nil
}

// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the configuration of the taint analysis and the logging
// utilities shared by the analysis packages.
package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/webtaint-tools/webtaint/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the user-facing options of the analyzer: verbosity, fixpoint and
// shape bounds, report destinations, false-positive filters and custom taint category
// names. Fields not defined in the config file are empty/zero in the struct.
// Private fields are not populated from a yaml file, but computed after initialization.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// FalsePositives lists code identifiers whose findings are suppressed
	FalsePositives []CodeIdentifier `yaml:"false-positives"`

	// compiled filters for the false positives
	falsePositiveRegexes []CodeIdentifier
}

// Options groups the scalar knobs of the analyzer.
type Options struct {
	// ReportsDir is the directory where per-flow report files are stored when
	// ReportPaths is true. Created next to the config file when left empty.
	ReportsDir string `yaml:"reports-dir"`

	// ReportPaths specifies whether each taint flow should be reported in a separate
	// flow-*.out file containing the trace from source to sink
	ReportPaths bool `yaml:"report-paths"`

	// SarifOut is the path of the SARIF report to write. No SARIF output if empty.
	SarifOut string `yaml:"sarif-out"`

	// MaxPasses bounds the number of fixpoint passes over the code base.
	// Default is 5. If provided MaxPasses is <= 0, the default is used.
	MaxPasses int `yaml:"max-passes"`

	// MaxShapeDepth bounds the depth of the taint shapes tracked per value. Writes
	// below this depth collapse into the unknown-offset element. Default is 20.
	MaxShapeDepth int `yaml:"max-shape-depth"`

	// MaxCauseLines bounds the number of lines kept in a cause trail. Default is 25.
	MaxCauseLines int `yaml:"max-cause-lines"`

	// MaxAlarms sets a limit for the number of issues reported. If MaxAlarms <= 0,
	// it is ignored.
	MaxAlarms int `yaml:"max-alarms"`

	// Custom1Name and Custom2Name are the display names of the two user-defined
	// taint categories.
	Custom1Name string `yaml:"custom1-name"`
	Custom2Name string `yaml:"custom2-name"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// SilenceWarn suppresses warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// CodeIdentifier identifies a code element by function name and file. Fields are
// interpreted as regexes when they compile, and as literal prefixes otherwise.
type CodeIdentifier struct {
	// Function matches the fully qualified function name the finding occurs in
	Function string `yaml:"function"`

	// File matches the file the finding occurs in
	File string `yaml:"file"`

	functionRegex *regexp.Regexp
	fileRegex     *regexp.Regexp
}

// DefaultMaxPasses is the default bound on fixpoint passes.
const DefaultMaxPasses = 5

// DefaultMaxShapeDepth is the default bound on taint shape depth.
const DefaultMaxShapeDepth = 20

// DefaultMaxCauseLines is the default bound on cause trail length.
const DefaultMaxCauseLines = 25

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:     "",
		FalsePositives: nil,
		Options: Options{
			ReportsDir:    "",
			ReportPaths:   false,
			SarifOut:      "",
			MaxPasses:     DefaultMaxPasses,
			MaxShapeDepth: DefaultMaxShapeDepth,
			MaxCauseLines: DefaultMaxCauseLines,
			MaxAlarms:     0,
			LogLevel:      int(InfoLevel),
			SilenceWarn:   false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	if cfg.ReportPaths {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = DefaultMaxPasses
	}
	if cfg.MaxShapeDepth <= 0 {
		cfg.MaxShapeDepth = DefaultMaxShapeDepth
	}
	if cfg.MaxCauseLines <= 0 {
		cfg.MaxCauseLines = DefaultMaxCauseLines
	}

	cfg.falsePositiveRegexes = funcutil.Map(cfg.FalsePositives, compileRegexes)

	return cfg, nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

func compileRegexes(cid CodeIdentifier) CodeIdentifier {
	if cid.Function != "" {
		if r, err := regexp.Compile(cid.Function); err == nil {
			cid.functionRegex = r
		}
	}
	if cid.File != "" {
		if r, err := regexp.Compile(cid.File); err == nil {
			cid.fileRegex = r
		}
	}
	return cid
}

// matches returns true when the identifier matches the function and file provided.
// An empty field matches anything. A field that could not be compiled as a regex is
// treated as a literal prefix, the safe fallback.
func (cid CodeIdentifier) matches(function string, file string) bool {
	if cid.Function != "" {
		if cid.functionRegex != nil {
			if !cid.functionRegex.MatchString(function) {
				return false
			}
		} else if !strings.HasPrefix(function, cid.Function) {
			return false
		}
	}
	if cid.File != "" {
		if cid.fileRegex != nil {
			if !cid.fileRegex.MatchString(file) {
				return false
			}
		} else if !strings.HasPrefix(file, cid.File) {
			return false
		}
	}
	return true
}

// IsFalsePositive returns true if a finding in the given function and file matches one
// of the false-positive filters of the config.
func (c Config) IsFalsePositive(function string, file string) bool {
	return funcutil.Exists(c.falsePositiveRegexes,
		func(cid CodeIdentifier) bool { return cid.matches(function, file) })
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true if the configuration verbosity setting is larger than Info
// (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// CustomCategoryName returns the display name of custom category n (1 or 2), falling
// back to a generic name when the config does not define one.
func (c Config) CustomCategoryName(n int) string {
	switch {
	case n == 1 && c.Custom1Name != "":
		return c.Custom1Name
	case n == 2 && c.Custom2Name != "":
		return c.Custom2Name
	default:
		return fmt.Sprintf("custom%d", n)
	}
}

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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("could not write config: %v", err)
	}
	return path
}

func TestLoad_defaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "log-level: 0\n"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LogLevel != int(InfoLevel) {
		t.Errorf("unset log level must default to info, got %d", cfg.LogLevel)
	}
	if cfg.MaxPasses != DefaultMaxPasses {
		t.Errorf("unset max-passes must default to %d, got %d", DefaultMaxPasses, cfg.MaxPasses)
	}
	if cfg.MaxShapeDepth != DefaultMaxShapeDepth || cfg.MaxCauseLines != DefaultMaxCauseLines {
		t.Errorf("shape and trail bounds must default, got %d/%d",
			cfg.MaxShapeDepth, cfg.MaxCauseLines)
	}
}

func TestLoad_options(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
log-level: 4
max-passes: 3
max-shape-depth: 7
custom1-name: wikitext
sarif-out: out.sarif
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.Verbose() {
		t.Errorf("log level 4 is verbose")
	}
	if cfg.MaxPasses != 3 || cfg.MaxShapeDepth != 7 {
		t.Errorf("options must load, got %d/%d", cfg.MaxPasses, cfg.MaxShapeDepth)
	}
	if cfg.CustomCategoryName(1) != "wikitext" {
		t.Errorf("custom category names must load, got %q", cfg.CustomCategoryName(1))
	}
	if cfg.CustomCategoryName(2) != "custom2" {
		t.Errorf("unset custom category names fall back, got %q", cfg.CustomCategoryName(2))
	}
	if cfg.SarifOut != "out.sarif" {
		t.Errorf("sarif-out must load, got %q", cfg.SarifOut)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("loading a missing file must fail")
	}
}

func TestFalsePositiveFilters(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
false-positives:
  - function: "legacy_.*"
  - file: "vendor/"
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.IsFalsePositive("legacy_render", "src/a.php") {
		t.Errorf("the function regex must match")
	}
	if !cfg.IsFalsePositive("anything", "vendor/lib.php") {
		t.Errorf("the file prefix must match")
	}
	if cfg.IsFalsePositive("render", "src/a.php") {
		t.Errorf("unrelated findings must not be filtered")
	}
}

func TestFalsePositiveFilter_badRegexFallsBackToPrefix(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
false-positives:
  - function: "render[("
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.IsFalsePositive("render[(something", "a.php") {
		t.Errorf("an uncompilable pattern must fall back to prefix matching")
	}
}

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

// webtaint: a static taint-flow analyzer for PHP code bases. It tracks
// user-controlled data from the request superglobals to security-sensitive sinks
// (HTML output, SQL drivers, shell execution, deserialization, filesystem) and
// reports the source-to-sink chains it finds.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/webtaint-tools/webtaint/analysis/config"
	"github.com/webtaint-tools/webtaint/analysis/frontend"
	"github.com/webtaint-tools/webtaint/analysis/taint"
	"github.com/webtaint-tools/webtaint/internal/formatutil"
)

var (
	configPath = flag.String("config", "", "config file path for the taint analysis")
	showStats  = flag.Bool("stats", false, "print analysis timing statistics")
)

const usage = ` Perform taint analysis on your PHP files.
Usage:
    webtaint [options] <file path(s)>
Examples:
% webtaint -config config.yaml src/index.php src/lib.php
`

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.NewDefault()
	if *configPath != "" {
		config.SetGlobalConfig(*configPath)
		loaded, err := config.LoadGlobal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", *configPath, err)
			os.Exit(2)
		}
		cfg = loaded
	}
	logger := config.NewLogGroup(cfg)

	logger.Infof(formatutil.Faint("Reading sources"))
	cb, err := frontend.LoadFiles(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load program: %v\n", err)
		os.Exit(2)
	}

	start := time.Now()
	result := taint.Analyze(cfg, logger, cb)
	logger.Infof("Analysis took %3.4f s (%d passes)", time.Since(start).Seconds(), result.Passes)

	for _, issue := range result.Issues {
		taint.ReportIssue(cfg, logger, issue)
	}
	if len(result.Issues) == 0 {
		logger.Infof(formatutil.Green("No taint flows found"))
	}

	if cfg.SarifOut != "" {
		if err := taint.WriteSarif(cfg, result.Issues, cfg.SarifOut); err != nil {
			logger.Errorf("%v", err)
		} else {
			logger.Infof("SARIF report written to %s", cfg.SarifOut)
		}
	}

	if *showStats {
		result.Stats.Report(os.Stdout)
	}

	if len(result.Issues) > 0 {
		os.Exit(1)
	}
}

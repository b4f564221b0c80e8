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

package taint

import (
	"fmt"

	"github.com/owenrumney/go-sarif/v2/sarif"
	"github.com/webtaint-tools/webtaint/analysis/config"
)

// WriteSarif renders the issues as a SARIF 2.1.0 report with one rule per sink
// category and one result per finding, and writes it to path.
func WriteSarif(cfg *config.Config, issues []*Issue, path string) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("could not create sarif report: %w", err)
	}
	run := sarif.NewRunWithInformationURI("webtaint",
		"https://github.com/webtaint-tools/webtaint")

	rules := map[string]bool{}
	for _, issue := range issues {
		id := issue.RuleID()
		if !rules[id] {
			rules[id] = true
			run.AddRule(id).
				WithDescription("user-controlled data reaches a security-sensitive sink")
		}

		msg := issue.Message(cfg)
		if !issue.Trail.IsEmpty() {
			msg += " (caused by " + issue.Trail.String() + ")"
		}
		run.CreateResultForRule(id).
			WithLevel("error").
			WithMessage(sarif.NewTextMessage(msg)).
			AddLocation(
				sarif.NewLocationWithPhysicalLocation(
					sarif.NewPhysicalLocation().
						WithArtifactLocation(sarif.NewSimpleArtifactLocation(issue.File)).
						WithRegion(sarif.NewSimpleRegion(issue.Line, issue.Line)),
				),
			)
	}

	report.AddRun(run)
	if err := report.WriteFile(path); err != nil {
		return fmt.Errorf("could not write sarif report to %s: %w", path, err)
	}
	return nil
}

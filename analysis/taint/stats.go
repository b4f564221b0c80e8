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
	"io"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Stats aggregates per-function analysis durations across all passes.
type Stats struct {
	durations map[string][]float64
}

// NewStats returns an empty statistics collector.
func NewStats() *Stats {
	return &Stats{durations: map[string][]float64{}}
}

// Record adds one analysis duration for the named function.
func (s *Stats) Record(name string, d time.Duration) {
	s.durations[name] = append(s.durations[name], d.Seconds())
}

// Report writes a summary of the analysis timings: total time, mean and standard
// deviation per function run, and the slowest functions.
func (s *Stats) Report(w io.Writer) {
	var all []float64
	type entry struct {
		name  string
		total float64
	}
	var entries []entry
	for name, ds := range s.durations {
		total := 0.0
		for _, d := range ds {
			total += d
		}
		all = append(all, ds...)
		entries = append(entries, entry{name, total})
	}
	if len(all) == 0 {
		return
	}

	mean, std := stat.MeanStdDev(all, nil)
	total := stat.Mean(all, nil) * float64(len(all))
	fmt.Fprintf(w, "analysis runs: %d, total %.4fs, mean %.6fs, stddev %.6fs\n",
		len(all), total, mean, std)

	sort.Slice(entries, func(i, j int) bool { return entries[i].total > entries[j].total })
	n := 5
	if len(entries) < n {
		n = len(entries)
	}
	for _, e := range entries[:n] {
		fmt.Fprintf(w, "  %-40s %.6fs\n", e.name, e.total)
	}
}

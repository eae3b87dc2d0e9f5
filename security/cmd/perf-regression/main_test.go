package main

import (
	"strings"
	"testing"
)

var tracked = map[string][]string{
	"BenchmarkRefresh": {"ns/op", "allocs/op"},
}

const baselineRun = `goos: linux
BenchmarkRefresh-8   	  200000	      5000 ns/op	    1840 B/op	      20 allocs/op
BenchmarkRefresh-8   	  200000	      5200 ns/op	    1840 B/op	      20 allocs/op
BenchmarkRefresh-8   	  200000	      5100 ns/op	    1840 B/op	      20 allocs/op
BenchmarkLogin-8     	  100000	      9000 ns/op
PASS
`

func TestParseKeepsTrackedBenchmarks(t *testing.T) {
	s, err := parse(strings.NewReader(baselineRun), tracked)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := len(s["BenchmarkRefresh"]["ns/op"]); got != 3 {
		t.Fatalf("expected 3 ns/op samples, got %d", got)
	}
	if _, ok := s["BenchmarkLogin"]; ok {
		t.Fatal("untracked benchmark should be skipped")
	}
	if m := median(s["BenchmarkRefresh"]["ns/op"]); m != 5100 {
		t.Fatalf("median = %v, want 5100", m)
	}
}

func TestCompareFlagsRegression(t *testing.T) {
	base, _ := parse(strings.NewReader(baselineRun), tracked)
	cand, _ := parse(strings.NewReader(strings.ReplaceAll(baselineRun, "20 allocs/op", "30 allocs/op")), tracked)

	rows, failures := compare(base, cand, tracked, 0.30)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(failures) != 1 || !strings.Contains(failures[0], "allocs/op") {
		t.Fatalf("expected one allocs/op regression, got %v", failures)
	}

	_, failures = compare(base, base, tracked, 0.30)
	if len(failures) != 0 {
		t.Fatalf("identical runs should pass, got %v", failures)
	}
}

func TestCompareReportsMissingSamples(t *testing.T) {
	base, _ := parse(strings.NewReader(baselineRun), tracked)
	_, failures := compare(base, samples{}, tracked, 0.30)
	if len(failures) != 2 {
		t.Fatalf("expected 2 missing-sample failures, got %v", failures)
	}
}

func TestTrimProcs(t *testing.T) {
	for in, want := range map[string]string{
		"BenchmarkRefresh-8":     "BenchmarkRefresh",
		"BenchmarkRefresh":       "BenchmarkRefresh",
		"BenchmarkRefresh-Redis": "BenchmarkRefresh-Redis",
	} {
		if got := trimProcs(in); got != want {
			t.Errorf("trimProcs(%q) = %q, want %q", in, got, want)
		}
	}
}

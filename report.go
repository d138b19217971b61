package cansil

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// junitTestSuite and junitTestCase model just enough of the JUnit XML
// schema to satisfy generic CI consumers (GitLab, Jenkins, GitHub
// Actions). No grounded third-party JUnit writer exists anywhere in the
// pack, so this is built directly on encoding/xml (see SPEC_FULL.md §6).
type junitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// WriteJUnitReport emits a JUnit-compatible XML test report to path.
func WriteJUnitReport(results []ScenarioResult, path string) error {
	suite := junitTestSuite{
		Name:      "CAN SIL Tests",
		Tests:     len(results),
		Timestamp: time.Now().Format("2006-01-02T15:04:05"),
	}
	for _, r := range results {
		tc := junitTestCase{
			Name:      fmt.Sprintf("%s: %s", r.ScenarioID, r.ScenarioName),
			ClassName: "cansil.verdict_checker",
			Time:      r.Duration.Seconds(),
			SystemOut: scenarioStdout(r),
		}
		switch {
		case r.Error != "":
			suite.Errors++
			tc.Error = &junitMessage{Message: r.Error, Body: r.Error}
		case !r.Passed:
			suite.Failures++
			tc.Failure = &junitMessage{Message: fmt.Sprintf("scenario %s failed", r.ScenarioID), Body: failureBody(r)}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	data, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	return os.WriteFile(path, data, 0644)
}

func failureBody(r ScenarioResult) string {
	var lines []string
	for _, v := range r.Verdicts {
		if v.Passed {
			continue
		}
		line := fmt.Sprintf("[%s] expected=%s, observed=%s", v.Description, v.Expected, v.Observed)
		if v.Details != "" {
			line += " (" + v.Details + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func scenarioStdout(r ScenarioResult) string {
	lines := []string{
		fmt.Sprintf("Scenario: %s (%s)", r.ScenarioName, r.ScenarioID),
		fmt.Sprintf("Verifies: %s", strings.Join(r.Verifies, ", ")),
		fmt.Sprintf("ASPICE: %s", r.ASPICE),
		fmt.Sprintf("Duration: %.2fs", r.Duration.Seconds()),
		fmt.Sprintf("Result: %s", passFail(r.Passed)),
		"",
		"Verdicts:",
	}
	for _, v := range r.Verdicts {
		lines = append(lines, fmt.Sprintf("  [%s] %s: expected=%s, observed=%s", passFail(v.Passed), v.Description, v.Expected, v.Observed))
		if v.Details != "" {
			lines = append(lines, "         "+v.Details)
		}
	}
	return strings.Join(lines, "\n")
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

// WriteSummaryReport emits a human-readable plain-text summary to path.
func WriteSummaryReport(results []ScenarioResult, path string) error {
	total := len(results)
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	rate := 0.0
	if total > 0 {
		rate = float64(passed) / float64(total) * 100
	}

	var b strings.Builder
	sep := strings.Repeat("=", 60)
	fmt.Fprintln(&b, sep)
	fmt.Fprintln(&b, "  CAN SIL Test Summary")
	fmt.Fprintf(&b, "  Date: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, sep)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "  Total scenarios:  %d\n", total)
	fmt.Fprintf(&b, "  Passed:           %d\n", passed)
	fmt.Fprintf(&b, "  Failed:           %d\n", total-passed)
	fmt.Fprintf(&b, "  Pass rate:        %.1f%%\n", rate)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, strings.Repeat("-", 60))

	verifies := map[string]struct{}{}
	for _, r := range results {
		fmt.Fprintf(&b, "  [%s] %s: %s (%.1fs)\n", passFail(r.Passed), r.ScenarioID, r.ScenarioName, r.Duration.Seconds())
		if r.Error != "" {
			fmt.Fprintf(&b, "         ERROR: %s\n", r.Error)
		}
		for _, v := range r.Verdicts {
			fmt.Fprintf(&b, "    [%s] %s: expected=%s, observed=%s\n", passFail(v.Passed), v.Description, v.Expected, v.Observed)
		}
		for _, vf := range r.Verifies {
			verifies[vf] = struct{}{}
		}
	}

	names := make([]string, 0, len(verifies))
	for v := range verifies {
		names = append(names, v)
	}
	sort.Strings(names)

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, strings.Repeat("-", 60))
	fmt.Fprintf(&b, "  Requirement coverage: %s\n", strings.Join(names, ", "))
	fmt.Fprintln(&b, sep)

	return os.WriteFile(path, []byte(b.String()), 0644)
}

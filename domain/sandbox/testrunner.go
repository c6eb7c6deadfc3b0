package sandbox

import (
	"fmt"
	"strings"

	"github.com/opslab/opslab/domain/exercises"
)

const actualOutputPreview = 200

// TestResult is the verdict for a single test case
type TestResult struct {
	Passed   bool   `json:"passed"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TestReport aggregates the verdicts for one execution
type TestReport struct {
	Passed      bool         `json:"passed"`
	TotalTests  int          `json:"total_tests"`
	PassedTests int          `json:"passed_tests"`
	FailedTests int          `json:"failed_tests"`
	TestResults []TestResult `json:"test_results"`
	Error       string       `json:"error,omitempty"`
}

// RunTests evaluates the declarative test cases against an execution's
// output. A failed execution short-circuits: output checks must never
// mask the fact that the playbook did not run cleanly.
func RunTests(testCases []exercises.TestCase, result *ExecutionResult) TestReport {
	total := len(testCases)

	if !result.Success {
		return TestReport{
			Passed:      false,
			TotalTests:  total,
			PassedTests: 0,
			FailedTests: total,
			TestResults: []TestResult{},
			Error:       "Playbook execution failed",
		}
	}

	results := make([]TestResult, 0, total)
	passed := 0
	for _, tc := range testCases {
		r := runTestCase(tc, result)
		if r.Passed {
			passed++
		}
		results = append(results, r)
	}

	return TestReport{
		Passed:      passed == total,
		TotalTests:  total,
		PassedTests: passed,
		FailedTests: total - passed,
		TestResults: results,
	}
}

func runTestCase(tc exercises.TestCase, result *ExecutionResult) TestResult {
	out := TestResult{Name: tc.Name, Type: tc.Type}

	switch tc.Type {
	case "output_contains":
		out.Expected = tc.Expected
		out.Actual = preview(result.Stdout)
		out.Passed = strings.Contains(result.Stdout, tc.Expected)

	case "exit_code":
		expected := 0
		if tc.ExitCode != nil {
			expected = *tc.ExitCode
		}
		out.Expected = fmt.Sprintf("%d", expected)
		out.Actual = fmt.Sprintf("%d", result.ExitCode)
		out.Passed = result.ExitCode == expected

	case "task_changed":
		// Heuristic over Ansible's recap line: some task reported a
		// change, and the summary is not the all-zero "changed=0".
		out.Passed = strings.Contains(result.Stdout, "changed=") &&
			!strings.Contains(result.Stdout, "changed=0")

	case "no_errors":
		out.Passed = result.ExitCode == 0 && !strings.Contains(result.Stderr, "FAILED")

	default:
		out.Passed = false
		out.Error = fmt.Sprintf("Unknown test type: %s", tc.Type)
	}

	return out
}

func preview(s string) string {
	if len(s) > actualOutputPreview {
		return s[:actualOutputPreview]
	}
	return s
}

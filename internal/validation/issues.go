package validation

import (
	"fmt"
	"strings"
)

// =============================================================================
// NON-FATAL ISSUES
// =============================================================================

// Severity indicates how loud a non-fatal finding is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Issue is a finding that does not stop the run but must stay visible in the
// run log and the console.
type Issue struct {
	Severity Severity

	// Stage is the pipeline stage that raised the issue ("report", "rates", ...).
	Stage string

	Message string

	// RowNumber is the 1-based source row, or 0 when the issue is not row-specific.
	RowNumber int
}

// String renders the issue on a single line.
func (i Issue) String() string {
	if i.RowNumber > 0 {
		return fmt.Sprintf("[%s] %s row %d: %s", strings.ToUpper(string(i.Severity)), i.Stage, i.RowNumber, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(i.Severity)), i.Stage, i.Message)
}

// Issues is an ordered collection of findings.
type Issues []Issue

// Warn appends a warning.
func (is *Issues) Warn(stage, format string, args ...any) {
	*is = append(*is, Issue{Severity: SeverityWarning, Stage: stage, Message: fmt.Sprintf(format, args...)})
}

// WarnRow appends a warning tied to a source row.
func (is *Issues) WarnRow(stage string, row int, format string, args ...any) {
	*is = append(*is, Issue{Severity: SeverityWarning, Stage: stage, RowNumber: row, Message: fmt.Sprintf(format, args...)})
}

// Info appends an informational finding.
func (is *Issues) Info(stage, format string, args ...any) {
	*is = append(*is, Issue{Severity: SeverityInfo, Stage: stage, Message: fmt.Sprintf(format, args...)})
}

// Warnings returns the number of warnings.
func (is Issues) Warnings() int {
	n := 0
	for _, i := range is {
		if i.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// FormatIssues formats issues for the run log and console.
func FormatIssues(issues Issues) string {
	if len(issues) == 0 {
		return "No issues.\n"
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%d issue(s):\n", len(issues)))
	for i, issue := range issues {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, issue.String()))
	}
	return builder.String()
}

package gate

import (
	"fmt"
	"strings"
)

const (
	// maxDetailsChars caps the rendered size of one validator's details
	// block. The cap applies to the rendered string, not the source object.
	maxDetailsChars = 3000

	maxErrorItems      = 20
	maxFailedTestItems = 10

	truncationMarker = "... (truncated)"
)

// BuildRejectionReport formats a structured, LLM-consumable Markdown report
// for a failed run: one section per gate with pass/fail counts, then one
// subsection per failed validator in gate order, then validator order.
func BuildRejectionReport(runID, status string, gateResults []GateResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Validation Report — run %s\n\n", runID)
	fmt.Fprintf(&b, "**Overall status:** %s\n\n", status)

	for _, gr := range gateResults {
		glyph := "✅"
		if !gr.Passed {
			glyph = "❌"
		}
		name := gr.Name
		if name == "" {
			name = fmt.Sprintf("Gate %d", gr.Gate)
		}
		fmt.Fprintf(&b, "## %s %s (gate %d)\n\n", glyph, name, gr.Gate)
		fmt.Fprintf(&b, "passed: %d, failed: %d, warnings: %d\n\n",
			gr.PassedCount, gr.FailedCount, gr.WarningCount)

		for _, vr := range gr.Validators {
			if vr.Status != StatusFailed {
				continue
			}
			fmt.Fprintf(&b, "### ❌ %s (`%s`, gate %d)\n\n", vr.Name, vr.Code, vr.Gate)
			if vr.Message != "" {
				fmt.Fprintf(&b, "%s\n\n", vr.Message)
			}
			if vr.Details != nil {
				b.WriteString(renderDetails(vr.Details))
			}
		}
	}

	return b.String()
}

// renderDetails renders a details payload under labeled headings, capped at
// maxDetailsChars of output.
func renderDetails(d *Details) string {
	var b strings.Builder

	switch d.Kind {
	case DetailsViolations:
		writeList(&b, "Violations", d.Violations, 0)
		writeList(&b, "Incomplete files", d.IncompleteFiles, 0)
		writeList(&b, "Errors", d.Errors, maxErrorItems)
	case DetailsFailedTests:
		if len(d.FailedTests) > 0 {
			b.WriteString("**Failed tests:**\n\n")
			shown := d.FailedTests
			if len(shown) > maxFailedTestItems {
				shown = shown[:maxFailedTestItems]
			}
			for _, ft := range shown {
				if ft.Message != "" {
					fmt.Fprintf(&b, "- %s: %s\n", ft.Name, ft.Message)
				} else {
					fmt.Fprintf(&b, "- %s\n", ft.Name)
				}
			}
			if len(d.FailedTests) > maxFailedTestItems {
				fmt.Fprintf(&b, "- ... and %d more\n", len(d.FailedTests)-maxFailedTestItems)
			}
			b.WriteString("\n")
		}
		writeList(&b, "Errors", d.Errors, maxErrorItems)
	case DetailsText:
		if d.Text != "" {
			b.WriteString(d.Text)
			b.WriteString("\n\n")
		}
	}

	return truncate(b.String(), maxDetailsChars)
}

func writeList(b *strings.Builder, heading string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	shown := items
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	fmt.Fprintf(b, "**%s:**\n\n", heading)
	for _, it := range shown {
		fmt.Fprintf(b, "- %s\n", it)
	}
	if limit > 0 && len(items) > limit {
		fmt.Fprintf(b, "- ... and %d more\n", len(items)-limit)
	}
	b.WriteString("\n")
}

// truncate shortens s to at most max characters, appending the truncation
// marker. The marker counts toward the budget so output never exceeds max.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + truncationMarker
}

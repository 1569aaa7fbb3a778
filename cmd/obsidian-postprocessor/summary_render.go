package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rwese/obsidian-postprocessor/internal/orchestrator"
)

const maxMessageWidth = 80

func renderSummary(w io.Writer, summary orchestrator.Summary, colorize bool) {
	title := "Run summary"
	if summary.DryRun {
		title = "Dry run"
	}
	printLines(w, renderSectionHeader(title, colorize))

	counts := renderTable(
		[]string{"Scanned", "Skipped", "Processed", "Failed", "Duration"},
		[][]string{{
			strconv.Itoa(summary.Scanned),
			strconv.Itoa(summary.Skipped),
			strconv.Itoa(summary.Processed),
			strconv.Itoa(summary.Failed),
			summary.Duration.Round(time.Millisecond).String(),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	)
	fmt.Fprintln(w, counts)

	if summary.DryRun {
		if len(summary.Planned) == 0 {
			fmt.Fprintln(w, "Nothing to process")
		} else {
			fmt.Fprintf(w, "\nWould process %d item(s):\n", len(summary.Planned))
			rows := make([][]string, 0, len(summary.Planned))
			for _, item := range summary.Planned {
				rows = append(rows, []string{item.Document, item.Attachment, item.Processor, strconv.Itoa(item.PriorAttempts)})
			}
			fmt.Fprintln(w, renderTable(
				[]string{"Note", "Attachment", "Processor", "Prior attempts"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
		}
	}

	if len(summary.Failures) > 0 {
		fmt.Fprintln(w)
		printLines(w, renderSectionHeader("Failures", colorize))
		fmt.Fprintln(w, renderIssues(summary.Failures))
	}
	if len(summary.Warnings) > 0 {
		fmt.Fprintln(w)
		printLines(w, renderSectionHeader("Warnings", colorize))
		fmt.Fprintln(w, renderIssues(summary.Warnings))
	}
}

func renderIssues(issues []orchestrator.Issue) string {
	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		rows = append(rows, []string{
			issue.Document,
			dash(issue.Attachment),
			dash(issue.Processor),
			issue.Kind,
			truncate(issue.Message, maxMessageWidth),
		})
	}
	return renderTable(
		[]string{"Note", "Attachment", "Processor", "Kind", "Message"},
		rows,
		nil,
	)
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

package main

import (
	"fmt"
	"strings"

	"chatharvest/internal/digest"
	"chatharvest/internal/harvest"

	"github.com/charmbracelet/lipgloss"
)

var (
	senderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	replyStyle  = lipgloss.NewStyle().PaddingLeft(2)
)

func renderTranscript(records []harvest.MessageRecord) string {
	if len(records) == 0 {
		return dimStyle.Render("(no messages)")
	}
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(senderStyle.Render(r.Sender))
		b.WriteString(": ")
		b.WriteString(r.Content)
	}
	return b.String()
}

func renderStats(res *harvest.Result) string {
	return dimStyle.Render(fmt.Sprintf("%d messages (%d captured, %d skipped) in %d passes, stopped: %s",
		len(res.Records), res.Captured, res.Skipped, res.Passes, res.Stop))
}

func renderDigest(d *digest.Result) string {
	var sections []string
	if d.Summary != "" {
		sections = append(sections, headerStyle.Render("Summary")+"\n"+d.Summary)
	}
	if len(d.Replies) > 0 {
		lines := make([]string, 0, len(d.Replies))
		for _, r := range d.Replies {
			lines = append(lines, replyStyle.Render(r))
		}
		sections = append(sections, headerStyle.Render("Replies")+"\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

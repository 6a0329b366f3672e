package cliui

import (
	"strings"

	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// TranscriptOptions controls how the chat transcript is rendered.
type TranscriptOptions struct {
	// Markdown renders assistant bubbles through glamour. Leave it off
	// when output is not a terminal.
	Markdown bool

	// Streaming marks the last assistant bubble as still being written.
	// It is rendered as plain text with a cursor.
	Streaming bool
}

// RenderTranscript renders every bubble in order.
func RenderTranscript(entries []transcript.Entry, opts TranscriptOptions) string {
	var b strings.Builder
	for i, e := range entries {
		live := opts.Streaming && i == len(entries)-1 && e.Role == transcript.RoleAssistant
		b.WriteString(RenderEntry(e, opts.Markdown && !live))
		if live {
			b.WriteString(AccentStyle.Render("▍"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderEntry renders a single bubble.
func RenderEntry(e transcript.Entry, markdown bool) string {
	if e.Role == transcript.RoleUser {
		return UserStyle.Render("you ›") + " " + e.Content
	}

	prefix := KeyStyle.Render("assistant ›")
	if !markdown {
		return prefix + " " + e.Content
	}

	rendered, err := RenderMarkdown(e.Content)
	if err != nil {
		return prefix + " " + e.Content
	}
	return prefix + "\n" + strings.TrimRight(rendered, "\n")
}

// RenderSuggestions lists QuickSuggestions with their numbers.
func RenderSuggestions() string {
	var b strings.Builder
	b.WriteString(DimStyle.Render("Try asking:"))
	for i, s := range QuickSuggestions {
		b.WriteString("\n  ")
		b.WriteString(KeyStyle.Render(string(rune('1' + i))))
		b.WriteString(" ")
		b.WriteString(s)
	}
	return b.String()
}

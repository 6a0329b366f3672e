package cliui_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/cliui"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

var _ = Describe("RenderTranscript", func() {
	entries := []transcript.Entry{
		{Role: transcript.RoleUser, Content: "Find action movies"},
		{Role: transcript.RoleAssistant, Content: "Here are some picks"},
	}

	It("renders bubbles in order", func() {
		out := cliui.RenderTranscript(entries, cliui.TranscriptOptions{})
		Expect(out).To(MatchRegexp(`(?s)Find action movies.*Here are some picks`))
	})

	It("marks the streaming bubble with a cursor", func() {
		out := cliui.RenderTranscript(entries, cliui.TranscriptOptions{Streaming: true, Markdown: true})
		Expect(out).To(ContainSubstring("Here are some picks"))
		Expect(out).To(ContainSubstring("▍"))
	})

	It("lists the quick suggestions", func() {
		out := cliui.RenderSuggestions()
		for _, s := range cliui.QuickSuggestions {
			Expect(out).To(ContainSubstring(s))
		}
	})
})

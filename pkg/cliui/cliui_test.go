package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("prints a success mark when fn succeeds", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "Opening storage", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("Opening storage"))
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})

	It("returns the error from fn with a fail mark", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "Connecting", func() error { return errors.New("refused") })
		Expect(err).To(MatchError("refused"))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below one second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds with one decimal above", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

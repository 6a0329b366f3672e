package replaycmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/spf13/cobra"

	replaycmder "github.com/papercomputeco/streamflow/cmd/streamflow/replay"
	"github.com/papercomputeco/streamflow/pkg/session"
	testutils "github.com/papercomputeco/streamflow/pkg/utils/test"
)

func newReplayCmd(args ...string) *cobra.Command {
	cmd := replaycmder.NewReplayCmd()
	cmd.PersistentFlags().BoolP("debug", "d", false, "")
	cmd.PersistentFlags().String("config-dir", "", "")
	cmd.SetArgs(args)
	return cmd
}

var _ = Describe("replay", func() {
	var (
		dir       string
		capture   string
		configDir string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "streamflow-replay-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = os.RemoveAll(dir) })

		configDir = filepath.Join(dir, "conf")
		capture = filepath.Join(dir, "turn.sse")
		stream := testutils.NewStream().
			Token("model", "Try ").
			Token("model", "these thrillers.").
			Patch("curator", `{"trendingCategory":"Edge of Your Seat","searchQuery":"thriller"}`).
			Done().
			String()
		Expect(os.WriteFile(capture, []byte(stream), 0o644)).To(Succeed())
	})

	It("prints the reconstructed transcript and dashboard", func() {
		var out bytes.Buffer
		cmd := newReplayCmd(capture, "--message", "Find thrillers", "--config-dir", configDir)
		cmd.SetOut(&out)
		Expect(cmd.Execute()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Find thrillers"))
		Expect(out.String()).To(ContainSubstring("Try these thrillers."))
		Expect(out.String()).To(ContainSubstring(`No results for "thriller"`))
	})

	It("prints the session as JSON", func() {
		var out bytes.Buffer
		cmd := newReplayCmd(capture, "--json", "--config-dir", configDir)
		cmd.SetOut(&out)
		Expect(cmd.Execute()).To(Succeed())

		var snap session.Snapshot
		Expect(json.Unmarshal(out.Bytes(), &snap)).To(Succeed())
		Expect(snap.Transcript).To(HaveLen(1))
		Expect(snap.Transcript[0].Content).To(Equal("Try these thrillers."))
		Expect(snap.Document.TrendingCategory).NotTo(BeNil())
		Expect(*snap.Document.TrendingCategory).To(Equal("Edge of Your Seat"))
		Expect(snap.Streaming).To(BeFalse())
	})

	It("starts from a saved state document", func() {
		statePath := filepath.Join(dir, "state.json")
		Expect(os.WriteFile(statePath, []byte(`{"activeGenre":"horror"}`), 0o644)).To(Succeed())

		var out bytes.Buffer
		cmd := newReplayCmd(capture, "--json", "--state", statePath, "--config-dir", configDir)
		cmd.SetOut(&out)
		Expect(cmd.Execute()).To(Succeed())

		var snap session.Snapshot
		Expect(json.Unmarshal(out.Bytes(), &snap)).To(Succeed())
		Expect(snap.Document.ActiveGenre).NotTo(BeNil())
		Expect(string(*snap.Document.ActiveGenre)).To(Equal("horror"))
	})

	It("fails for a missing file", func() {
		cmd := newReplayCmd(filepath.Join(dir, "missing.sse"), "--config-dir", configDir)
		cmd.SetOut(&bytes.Buffer{})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("opening capture")))
	})

	It("replays again when the file changes", func() {
		out := gbytes.NewBuffer()
		ctx, cancel := context.WithCancel(context.Background())
		DeferCleanup(cancel)

		cmd := newReplayCmd(capture, "--watch", "--config-dir", configDir)
		cmd.SetOut(out)

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- cmd.ExecuteContext(ctx)
		}()

		Eventually(out).Should(gbytes.Say("Try these thrillers."))

		updated := testutils.NewStream().Token("model", "Updated reply.").Done().String()
		Expect(os.WriteFile(capture, []byte(updated), 0o644)).To(Succeed())
		Eventually(out).Should(gbytes.Say("Updated reply."))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})

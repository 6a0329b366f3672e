package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/dotdir"
	"github.com/papercomputeco/streamflow/pkg/state"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

var _ = Describe("dotdir.Manager session state", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	Describe("LoadSessionState", func() {
		It("returns nil when no session has been saved", func() {
			s, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(BeNil())
		})

		It("loads a file without a document using the default document", func() {
			data := `{"sessionId":"abc","transcript":[{"role":"user","content":"hello"}]}`
			Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte(data), 0o600)).To(Succeed())

			s, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.SessionID).To(Equal("abc"))
			Expect(s.Transcript).To(HaveLen(1))
			Expect(s.Document).To(Equal(state.Default()))
		})

		It("returns error for invalid JSON", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("not json"), 0o600)).To(Succeed())

			s, err := m.LoadSessionState(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(s).To(BeNil())
		})
	})

	Describe("SaveSessionState", func() {
		It("returns error for nil state", func() {
			Expect(m.SaveSessionState(nil, tmpDir)).NotTo(Succeed())
		})

		It("round-trips the session", func() {
			doc := state.Default()
			doc.ActiveGenre = state.Ptr(state.GenreDrama)

			saved := &dotdir.SessionState{
				SessionID: "session-1",
				Transcript: []transcript.Entry{
					{Role: transcript.RoleUser, Content: "Show me dramas"},
					{Role: transcript.RoleAssistant, Content: "Here are some dramas."},
				},
				Document: doc,
				SavedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			}
			Expect(m.SaveSessionState(saved, tmpDir)).To(Succeed())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(saved))
		})
	})

	Describe("ClearSessionState", func() {
		It("removes the saved session", func() {
			Expect(m.SaveSessionState(&dotdir.SessionState{SessionID: "x", Document: state.Default()}, tmpDir)).To(Succeed())
			Expect(m.ClearSessionState(tmpDir)).To(Succeed())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())
		})

		It("succeeds when nothing was saved", func() {
			Expect(m.ClearSessionState(tmpDir)).To(Succeed())
		})
	})
})

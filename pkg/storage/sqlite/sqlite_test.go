package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/storage/sqlite"
	testutils "github.com/papercomputeco/streamflow/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		driver, err = sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			s, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps turns across reopen", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "reopen.db")

			first, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = first.Put(ctx, testutils.NewTestTurn("t1", "s1", 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Close()).To(Succeed())

			second, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()

			got, err := second.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SessionID).To(Equal("s1"))
		})
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a turn", func() {
			turn := testutils.NewTestTurn("t1", "s1", 0)

			inserted, err := driver.Put(ctx, turn)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			got, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserMessage).To(Equal(turn.UserMessage))
			Expect(got.Reply).To(Equal(turn.Reply))
			Expect(got.Document).To(Equal(turn.Document))
			Expect(got.Status).To(Equal(storage.StatusCompleted))
			Expect(got.Bytes).To(Equal(int64(128)))
			Expect(got.StartedAt).To(Equal(turn.StartedAt))
			Expect(got.Duration()).To(Equal(1500 * time.Millisecond))
		})

		It("is a no-op for an existing ID", func() {
			_, err := driver.Put(ctx, testutils.NewTestTurn("t1", "s1", 0))
			Expect(err).NotTo(HaveOccurred())

			inserted, err := driver.Put(ctx, testutils.NewTestTurn("t1", "other", 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			got, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SessionID).To(Equal("s1"))
		})

		It("rejects invalid turns", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(HaveOccurred())
			_, err = driver.Put(ctx, &storage.Turn{ID: "no-session"})
			Expect(err).To(HaveOccurred())
		})

		It("returns NotFoundError for a missing turn", func() {
			_, err := driver.Get(ctx, "missing")
			var nf storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})
	})

	Describe("ListTurns and Latest", func() {
		BeforeEach(func() {
			for _, t := range []*storage.Turn{
				testutils.NewTestTurn("b", "s1", 2*time.Minute),
				testutils.NewTestTurn("a", "s1", time.Minute),
				testutils.NewTestTurn("c", "s2", 3*time.Minute),
			} {
				_, err := driver.Put(ctx, t)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("orders a session's turns by start time", func() {
			turns, err := driver.ListTurns(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].ID).To(Equal("a"))
			Expect(turns[1].ID).To(Equal("b"))
		})

		It("returns the latest turn", func() {
			latest, err := driver.Latest(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal("b"))
		})

		It("returns NotFoundError for an unknown session", func() {
			_, err := driver.Latest(ctx, "nope")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "nope"}))
		})
	})

	Describe("Sessions", func() {
		It("summarises sessions, most recent first", func() {
			for _, t := range []*storage.Turn{
				testutils.NewTestTurn("a", "s1", 0),
				testutils.NewTestTurn("b", "s1", time.Minute),
				testutils.NewTestTurn("c", "s2", 30*time.Second),
			} {
				_, err := driver.Put(ctx, t)
				Expect(err).NotTo(HaveOccurred())
			}

			sessions, err := driver.Sessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2))
			Expect(sessions[0].ID).To(Equal("s1"))
			Expect(sessions[0].Turns).To(Equal(2))
			Expect(sessions[0].LastSeen.Sub(sessions[0].FirstSeen)).To(Equal(time.Minute))
			Expect(sessions[1].ID).To(Equal("s2"))
		})

		It("returns nothing for an empty store", func() {
			sessions, err := driver.Sessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(BeEmpty())
		})
	})
})

package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/streamflow/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	It("stores and retrieves a turn", func() {
		turn := testutils.NewTestTurn("t1", "s1", 0)
		inserted, err := driver.Put(ctx, turn)
		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(BeTrue())

		got, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(turn))
	})

	It("does not alias the stored turn", func() {
		turn := testutils.NewTestTurn("t1", "s1", 0)
		_, _ = driver.Put(ctx, turn)
		turn.Reply[0].Content = "mutated"

		got, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Reply[0].Content).To(Equal("reply t1"))
	})

	It("deduplicates by ID", func() {
		_, _ = driver.Put(ctx, testutils.NewTestTurn("t1", "s1", 0))
		inserted, err := driver.Put(ctx, testutils.NewTestTurn("t1", "s1", 0))
		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(BeFalse())
	})

	It("rejects a nil turn", func() {
		_, err := driver.Put(ctx, nil)
		Expect(err).To(MatchError("cannot store nil turn"))
	})

	It("returns NotFoundError for missing turns and sessions", func() {
		_, err := driver.Get(ctx, "missing")
		Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
		_, err = driver.Latest(ctx, "missing")
		Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
	})

	It("lists and summarises sessions", func() {
		_, _ = driver.Put(ctx, testutils.NewTestTurn("b", "s1", time.Minute))
		_, _ = driver.Put(ctx, testutils.NewTestTurn("a", "s1", 0))
		_, _ = driver.Put(ctx, testutils.NewTestTurn("c", "s2", 2*time.Minute))

		turns, err := driver.ListTurns(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect([]string{turns[0].ID, turns[1].ID}).To(Equal([]string{"a", "b"}))

		latest, err := driver.Latest(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.ID).To(Equal("b"))

		sessions, err := driver.Sessions(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(2))
		Expect(sessions[0].ID).To(Equal("s2"))
		Expect(sessions[1].Turns).To(Equal(2))
	})
})

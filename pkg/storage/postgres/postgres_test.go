package postgres_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/storage/postgres"
	testutils "github.com/papercomputeco/streamflow/pkg/utils/test"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("STREAMFLOW_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("STREAMFLOW_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	var (
		driver *postgres.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dsn := connStr()

		var err error
		driver, err = postgres.NewDriver(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())

		// Clean all turns before each test for isolation.
		_, err = driver.DB.ExecContext(ctx, "DELETE FROM turns")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("stores and retrieves a turn", func() {
		turn := testutils.NewTestTurn("t1", "s1", 0)
		inserted, err := driver.Put(ctx, turn)
		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(BeTrue())

		got, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Document).To(Equal(turn.Document))
		Expect(got.StartedAt).To(Equal(turn.StartedAt))
	})

	It("uses numbered placeholders for every query", func() {
		_, _ = driver.Put(ctx, testutils.NewTestTurn("a", "s1", 0))
		_, _ = driver.Put(ctx, testutils.NewTestTurn("b", "s1", time.Minute))

		turns, err := driver.ListTurns(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(2))

		latest, err := driver.Latest(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.ID).To(Equal("b"))

		_, err = driver.Get(ctx, "missing")
		Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
	})
})

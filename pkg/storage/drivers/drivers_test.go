package drivers_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/storage/drivers"
	"github.com/papercomputeco/streamflow/pkg/storage/inmemory"
)

var _ = Describe("Open", func() {
	ctx := context.Background()

	It("defaults to the in-memory driver", func() {
		d, err := drivers.Open(ctx, drivers.Config{})
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()
		Expect(d).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("rejects unknown providers", func() {
		_, err := drivers.Open(ctx, drivers.Config{Provider: "cassandra"})
		Expect(err).To(MatchError(ContainSubstring("unsupported storage provider")))
	})

	It("requires a DSN for postgres", func() {
		_, err := drivers.Open(ctx, drivers.Config{Provider: drivers.ProviderPostgres})
		Expect(err).To(HaveOccurred())
	})

	It("lists the memory provider", func() {
		Expect(drivers.Providers()).To(ContainElement(drivers.ProviderMemory))
	})
})

package notify_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/notify"
	"github.com/papercomputeco/streamflow/pkg/state"
	testutils "github.com/papercomputeco/streamflow/pkg/utils/test"
)

func note(id string) state.Notification {
	return state.Notification{ID: id, Type: state.NotificationInfo, Message: "msg " + id, Timestamp: "2025-01-01T00:00:00Z"}
}

func ids(list []state.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

var _ = Describe("Manager", func() {
	var (
		clock     *testutils.ManualClock
		m         *notify.Manager
		mu        sync.Mutex
		dismissed []string
	)

	BeforeEach(func() {
		clock = testutils.NewManualClock()
		dismissed = nil
		m = notify.New(
			notify.WithClock(clock),
			notify.WithOnDismiss(func(id string) {
				mu.Lock()
				defer mu.Unlock()
				dismissed = append(dismissed, id)
			}),
		)
	})

	AfterEach(func() {
		m.Close()
	})

	Describe("Observe", func() {
		It("makes new ids visible in list order", func() {
			added := m.Observe([]state.Notification{note("a"), note("b")})
			Expect(ids(added)).To(Equal([]string{"a", "b"}))
			Expect(ids(m.Visible())).To(Equal([]string{"a", "b"}))
			Expect(m.Pending()).To(Equal(2))
		})

		It("does not restart timers for ids already visible", func() {
			m.Observe([]state.Notification{note("a")})
			clock.Advance(3 * time.Second)
			Expect(m.Observe([]state.Notification{note("a")})).To(BeEmpty())

			clock.Advance(2 * time.Second)
			Expect(m.Visible()).To(BeEmpty())
		})

		It("ignores notifications without an id", func() {
			Expect(m.Observe([]state.Notification{{Message: "anonymous"}})).To(BeEmpty())
		})

		It("keeps a visible notification when the list drops it", func() {
			m.Observe([]state.Notification{note("a")})
			m.Observe(nil)
			Expect(ids(m.Visible())).To(Equal([]string{"a"}))
		})
	})

	Describe("expiry", func() {
		It("removes a notification after the default TTL", func() {
			m.Observe([]state.Notification{note("a")})

			clock.Advance(4999 * time.Millisecond)
			Expect(m.Visible()).To(HaveLen(1))
			Expect(dismissed).To(BeEmpty())

			clock.Advance(time.Millisecond)
			Expect(m.Visible()).To(BeEmpty())
			Expect(dismissed).To(Equal([]string{"a"}))
			Expect(m.Dismissed("a")).To(BeTrue())
		})

		It("gives each record its own timer", func() {
			m.Observe([]state.Notification{note("a")})
			clock.Advance(2 * time.Second)
			m.Observe([]state.Notification{note("a"), note("b")})

			clock.Advance(3 * time.Second)
			Expect(ids(m.Visible())).To(Equal([]string{"b"}))

			clock.Advance(2 * time.Second)
			Expect(m.Visible()).To(BeEmpty())
			Expect(dismissed).To(Equal([]string{"a", "b"}))
		})

		It("honours a custom TTL", func() {
			m.Close()
			m = notify.New(notify.WithClock(clock), notify.WithTTL(time.Second))
			m.Observe([]state.Notification{note("a")})
			clock.Advance(time.Second)
			Expect(m.Visible()).To(BeEmpty())
		})
	})

	Describe("Dismiss", func() {
		It("removes the record and cancels its timer", func() {
			m.Observe([]state.Notification{note("a"), note("b")})

			Expect(m.Dismiss("a")).To(BeTrue())
			Expect(ids(m.Visible())).To(Equal([]string{"b"}))
			Expect(m.Pending()).To(Equal(1))

			clock.Advance(notify.DefaultTTL)
			Expect(dismissed).To(Equal([]string{"a", "b"}))
		})

		It("does not double-remove", func() {
			m.Observe([]state.Notification{note("a")})
			Expect(m.Dismiss("a")).To(BeTrue())
			Expect(m.Dismiss("a")).To(BeFalse())
			clock.Advance(notify.DefaultTTL)
			Expect(dismissed).To(Equal([]string{"a"}))
		})

		It("never lets a dismissed id re-enter", func() {
			m.Observe([]state.Notification{note("a")})
			m.Dismiss("a")

			Expect(m.Observe([]state.Notification{note("a")})).To(BeEmpty())
			Expect(m.Visible()).To(BeEmpty())
		})

		It("returns false for unknown ids", func() {
			Expect(m.Dismiss("missing")).To(BeFalse())
		})
	})

	Describe("Close", func() {
		It("stops pending timers without running callbacks", func() {
			m.Observe([]state.Notification{note("a"), note("b")})
			m.Close()

			Expect(m.Pending()).To(BeZero())
			Expect(clock.Active()).To(BeZero())
			clock.Advance(time.Minute)
			Expect(dismissed).To(BeEmpty())
			Expect(m.Observe([]state.Notification{note("c")})).To(BeEmpty())
		})
	})

	Context("with the real clock", func() {
		It("expires on its own goroutine", func() {
			removed := make(chan string, 1)
			real := notify.New(
				notify.WithTTL(20*time.Millisecond),
				notify.WithOnDismiss(func(id string) { removed <- id }),
			)
			defer real.Close()

			real.Observe([]state.Notification{note("rt")})
			Eventually(removed).Should(Receive(Equal("rt")))
			Expect(real.Visible()).To(BeEmpty())
		})

		It("leaves no timers running after Close", func() {
			real := notify.New(notify.WithTTL(time.Hour))
			real.Observe([]state.Notification{note("x"), note("y")})
			real.Close()
			Expect(real.Pending()).To(BeZero())
		})
	})
})

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamflow/pkg/eventstream"
	"github.com/papercomputeco/streamflow/pkg/storage"
	"github.com/papercomputeco/streamflow/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/streamflow/pkg/utils/test"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnRecordedEvent
	err    error
}

func (r *recordingPublisher) PublishTurn(_ context.Context, event *eventstream.TurnRecordedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// blockingDriver blocks every Put until release is closed.
type blockingDriver struct {
	*inmemory.Driver
	release chan struct{}
}

func (b *blockingDriver) Put(ctx context.Context, turn *storage.Turn) (bool, error) {
	<-b.release
	return b.Driver.Put(ctx, turn)
}

type failingDriver struct {
	*inmemory.Driver
}

func (failingDriver) Put(context.Context, *storage.Turn) (bool, error) {
	return false, errors.New("disk full")
}

var _ = Describe("Worker Pool", func() {
	var (
		wp        *Pool
		driver    *inmemory.Driver
		publisher *recordingPublisher
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		publisher = &recordingPublisher{}

		var err error
		wp, err = NewPool(&Config{
			Driver:    driver,
			Publisher: publisher,
			Upstream:  "http://upstream",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		wp.Close()
	})

	It("requires a driver", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("applies default sizing", func() {
		Expect(wp.config.NumWorkers).To(Equal(uint(3)))
		Expect(cap(wp.queue)).To(Equal(256))
		wp.Close()
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			ok := wp.Enqueue(Job{Turn: testutils.NewTestTurn("t1", "s1", 0)})
			Expect(ok).To(BeTrue())
			wp.Close()
		})

		It("rejects a job without a turn", func() {
			Expect(wp.Enqueue(Job{})).To(BeFalse())
			wp.Close()
		})

		It("drops jobs when the queue is full", func() {
			wp.Close()

			blocking := &blockingDriver{Driver: inmemory.NewDriver(), release: make(chan struct{})}
			small, err := NewPool(&Config{Driver: blocking, NumWorkers: 1, QueueSize: 1})
			Expect(err).NotTo(HaveOccurred())

			// The first job occupies the worker, the second fills the queue.
			Expect(small.Enqueue(Job{Turn: testutils.NewTestTurn("a", "s1", 0)})).To(BeTrue())
			Eventually(func() int { return len(small.queue) }).Should(Equal(0))
			Expect(small.Enqueue(Job{Turn: testutils.NewTestTurn("b", "s1", 0)})).To(BeTrue())
			Expect(small.Enqueue(Job{Turn: testutils.NewTestTurn("c", "s1", 0)})).To(BeFalse())

			close(blocking.release)
			small.Close()

			turns, err := blocking.ListTurns(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
		})
	})

	Describe("processing", func() {
		It("stores every enqueued turn before Close returns", func() {
			for i := range 10 {
				id := fmt.Sprintf("t%d", i)
				Expect(wp.Enqueue(Job{Turn: testutils.NewTestTurn(id, "s1", time.Duration(i)*time.Second)})).To(BeTrue())
			}
			wp.Close()

			turns, err := driver.ListTurns(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(10))
			Expect(publisher.events).To(HaveLen(10))
		})

		It("publishes the event with request metadata", func() {
			wp.Enqueue(Job{Turn: testutils.NewTestTurn("t1", "s1", 0), Path: "/api/chat", HTTPStatus: 200})
			wp.Close()

			Expect(publisher.events).To(HaveLen(1))
			event := publisher.events[0]
			Expect(event.Source.SessionID).To(Equal("s1"))
			Expect(event.Source.Upstream).To(Equal("http://upstream"))
			Expect(event.RequestMeta.Path).To(Equal("/api/chat"))
			Expect(event.RequestMeta.HTTPStatus).To(Equal(200))
		})

		It("publishes a duplicate turn only once", func() {
			wp.Enqueue(Job{Turn: testutils.NewTestTurn("t1", "s1", 0)})
			wp.Enqueue(Job{Turn: testutils.NewTestTurn("t1", "s1", 0)})
			wp.Close()

			Expect(publisher.events).To(HaveLen(1))
		})

		It("keeps storing when publishing fails", func() {
			publisher.err = errors.New("broker down")
			wp.Enqueue(Job{Turn: testutils.NewTestTurn("t1", "s1", 0)})
			wp.Close()

			_, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("does not publish when storage fails", func() {
			wp.Close()

			failing, err := NewPool(&Config{Driver: failingDriver{inmemory.NewDriver()}, Publisher: publisher})
			Expect(err).NotTo(HaveOccurred())
			failing.Enqueue(Job{Turn: testutils.NewTestTurn("t1", "s1", 0)})
			failing.Close()

			Expect(publisher.events).To(BeEmpty())
		})
	})
})

package seed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

type recordingSubmitter struct {
	mu     sync.Mutex
	events []model.LoginEvent
	fail   bool
}

func (s *recordingSubmitter) Submit(_ context.Context, e model.LoginEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("submit refused")
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		g := NewGenerator(WithSeed(7))

		Convey("every emitted event is valid", func() {
			for i := 0; i < 200; i++ {
				So(g.Next().Validate(), ShouldBeNil)
			}
		})

		Convey("the same seed reproduces the same sequence", func() {
			a := NewGenerator(WithSeed(7))
			b := NewGenerator(WithSeed(7))
			for i := 0; i < 50; i++ {
				So(a.Next(), ShouldResemble, b.Next())
			}
		})

		Convey("some traffic uses the pre-seeded bad addresses", func() {
			bad := map[string]bool{}
			for _, ip := range MaliciousIPs() {
				bad[ip] = true
			}
			hits := 0
			for i := 0; i < 500; i++ {
				if bad[g.Next().IP] {
					hits++
				}
			}
			So(hits, ShouldBeGreaterThan, 0)
		})
	})
}

func TestRunner(t *testing.T) {
	Convey("Given a runner with a recording submitter", t, func() {
		sub := &recordingSubmitter{}
		r := NewRunner(NewGenerator(WithSeed(7)), sub, 4)

		Convey("Seed submits exactly count events", func() {
			So(r.Seed(context.Background(), 25), ShouldBeNil)
			So(sub.count(), ShouldEqual, 25)
		})

		Convey("Seed surfaces submitter failures", func() {
			sub.fail = true
			So(r.Seed(context.Background(), 5), ShouldNotBeNil)
		})

		Convey("Stream stops at count", func() {
			err := r.Stream(context.Background(), time.Millisecond, 5)
			So(err, ShouldBeNil)
			So(sub.count(), ShouldEqual, 5)
		})

		Convey("Stream honors cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- r.Stream(ctx, time.Millisecond, 0) }()

			time.Sleep(20 * time.Millisecond)
			cancel()

			select {
			case err := <-done:
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			case <-time.After(2 * time.Second):
				t.Fatal("stream did not stop on cancellation")
			}
		})
	})
}

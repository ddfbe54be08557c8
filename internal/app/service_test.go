package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ajitpdevops/rediguard/internal/adapters/store"
	"github.com/ajitpdevops/rediguard/internal/config"
	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

// workingHoursTS is a Wednesday 10:00 UTC.
const workingHoursTS = int64(1686132000)

func newTestService(t *testing.T, mutate ...func(*config.Config)) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.New()
	cfg.RedisAddr = mr.Addr()
	for _, m := range mutate {
		m(cfg)
	}
	s, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestIngest(t *testing.T) {
	Convey("Given a running service", t, func() {
		s := newTestService(t)
		ctx := context.Background()

		Convey("a routine working-hours login raises no alert", func() {
			a, err := s.Ingest(ctx, model.LoginEvent{
				UserID: "alice", IP: "203.0.113.1", Location: "New York, US", Timestamp: workingHoursTS,
			})
			So(err, ShouldBeNil)
			So(a.StreamPosition, ShouldNotBeEmpty)
			So(a.Score, ShouldBeLessThan, 0.8)
			So(a.IsAnomaly, ShouldBeFalse)
			So(a.IsMaliciousIP, ShouldBeFalse)
			So(a.Alert, ShouldBeNil)
			So(a.Features, ShouldHaveLength, 16)
			So(a.Embedding, ShouldHaveLength, 128)
		})

		Convey("a login from a known-bad IP always alerts", func() {
			added, err := s.AddMaliciousIP(ctx, "198.51.100.7")
			So(err, ShouldBeNil)
			So(added, ShouldBeTrue)

			a, err := s.Ingest(ctx, model.LoginEvent{
				UserID: "alice", IP: "198.51.100.7", Location: "New York, US", Timestamp: workingHoursTS,
			})
			So(err, ShouldBeNil)
			So(a.IsMaliciousIP, ShouldBeTrue)
			So(a.Alert, ShouldNotBeNil)
			So(a.Alert.IsMaliciousIP, ShouldBeTrue)

			Convey("and the alert is persisted and searchable", func() {
				got, err := s.GetAlert(ctx, a.Alert.ID)
				So(err, ShouldBeNil)
				So(got.UserID, ShouldEqual, "alice")

				found, err := s.SearchAlerts(ctx, store.AlertFilter{UserID: "alice"})
				So(err, ShouldBeNil)
				So(found, ShouldHaveLength, 1)
			})
		})

		Convey("a malformed event is rejected before any write", func() {
			_, err := s.Ingest(ctx, model.LoginEvent{IP: "1.2.3.4", Location: "x", Timestamp: 1})
			So(errors.Is(err, model.ErrMalformedEvent), ShouldBeTrue)

			n, err := s.Stream().Len(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("each ingested event lands on the stream", func() {
			for i := 0; i < 3; i++ {
				_, err := s.Ingest(ctx, model.LoginEvent{
					UserID: "alice", IP: "203.0.113.1", Location: "New York, US",
					Timestamp: workingHoursTS + int64(i),
				})
				So(err, ShouldBeNil)
			}
			n, err := s.Stream().Len(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
		})
	})
}

func TestReputation(t *testing.T) {
	Convey("Given a running service", t, func() {
		s := newTestService(t)
		ctx := context.Background()

		Convey("an added IP checks as malicious", func() {
			added, err := s.AddMaliciousIP(ctx, "10.0.0.99")
			So(err, ShouldBeNil)
			So(added, ShouldBeTrue)
			hit, err := s.CheckIP(ctx, "10.0.0.99")
			So(err, ShouldBeNil)
			So(hit, ShouldBeTrue)
		})

		Convey("re-adding an IP reports it was already present", func() {
			added, err := s.AddMaliciousIP(ctx, "10.0.0.99")
			So(err, ShouldBeNil)
			So(added, ShouldBeTrue)

			added, err = s.AddMaliciousIP(ctx, "10.0.0.99")
			So(err, ShouldBeNil)
			So(added, ShouldBeFalse)
		})

		Convey("an unknown IP does not", func() {
			hit, err := s.CheckIP(ctx, "10.0.0.1")
			So(err, ShouldBeNil)
			So(hit, ShouldBeFalse)
		})
	})
}

func TestAnomalyHistory(t *testing.T) {
	Convey("Given 30 hourly scores spanning the last 48 hours", t, func() {
		s := newTestService(t)
		ctx := context.Background()
		now := time.Now().Unix()

		// offset keeps samples safely off the window boundary
		for i := 0; i < 30; i++ {
			ts := now - int64(i)*3600 - 30
			So(s.timeseries.Append(ctx, "bob", ts, 0.5), ShouldBeNil)
		}

		Convey("a 24-hour query returns only the last day's points", func() {
			samples, err := s.AnomalyHistory(ctx, "bob", 24)
			So(err, ShouldBeNil)
			// hourly spacing puts indexes 0..23 inside the window
			So(samples, ShouldHaveLength, 24)
			for _, p := range samples {
				So(p.Timestamp, ShouldBeGreaterThanOrEqualTo, now-24*3600)
			}
		})

		Convey("an oversized window is capped at retention", func() {
			samples, err := s.AnomalyHistory(ctx, "bob", 10_000)
			So(err, ShouldBeNil)
			for _, p := range samples {
				So(p.Timestamp, ShouldBeGreaterThanOrEqualTo, now-int64(s.cfg.RetentionHours)*3600)
			}
		})
	})
}

func TestGeoJump(t *testing.T) {
	Convey("Given a user with no location on record", t, func() {
		s := newTestService(t)
		ctx := context.Background()

		first, err := s.Ingest(ctx, model.LoginEvent{
			UserID: "carol", IP: "203.0.113.5", Location: "New York, US", Timestamp: workingHoursTS,
		})
		So(err, ShouldBeNil)

		Convey("the first login has a zero jump", func() {
			So(first.GeoJumpKM, ShouldEqual, 0)
		})

		Convey("a second login from another continent jumps and alerts", func() {
			second, err := s.Ingest(ctx, model.LoginEvent{
				UserID: "carol", IP: "203.0.113.5", Location: "Tokyo, JP", Timestamp: workingHoursTS + 300,
			})
			So(err, ShouldBeNil)
			So(second.GeoJumpKM, ShouldBeGreaterThan, 1000)
			So(second.Alert, ShouldNotBeNil)
			So(second.Alert.GeoJumpKM, ShouldEqual, second.GeoJumpKM)
		})

		Convey("a repeat login from the same place does not jump", func() {
			repeat, err := s.Ingest(ctx, model.LoginEvent{
				UserID: "carol", IP: "203.0.113.5", Location: "New York, US", Timestamp: workingHoursTS + 600,
			})
			So(err, ShouldBeNil)
			So(repeat.GeoJumpKM, ShouldEqual, 0)
		})
	})
}

func TestSimilarBehavior(t *testing.T) {
	Convey("Given several ingested users", t, func() {
		s := newTestService(t)
		ctx := context.Background()

		for i, user := range []string{"u1", "u2", "u3"} {
			_, err := s.Ingest(ctx, model.LoginEvent{
				UserID: user, IP: "203.0.113.1", Location: "New York, US",
				Timestamp: workingHoursTS + int64(i),
			})
			So(err, ShouldBeNil)
		}

		Convey("similar behavior returns bounded, distance-ordered neighbors", func() {
			neighbors, err := s.SimilarBehavior(ctx, "u1", 2)
			So(err, ShouldBeNil)
			So(len(neighbors), ShouldBeLessThanOrEqualTo, 2)
			for i := 1; i < len(neighbors); i++ {
				So(neighbors[i].Distance, ShouldBeGreaterThanOrEqualTo, neighbors[i-1].Distance)
			}
		})

		Convey("an unknown user yields ErrNotFound", func() {
			_, err := s.SimilarBehavior(ctx, "nobody", 5)
			So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestReset(t *testing.T) {
	Convey("Given a service with state", t, func() {
		s := newTestService(t)
		ctx := context.Background()

		_, err := s.Ingest(ctx, model.LoginEvent{
			UserID: "alice", IP: "203.0.113.1", Location: "New York, US", Timestamp: workingHoursTS,
		})
		So(err, ShouldBeNil)
		_, err = s.AddMaliciousIP(ctx, "10.0.0.99")
		So(err, ShouldBeNil)

		Convey("Reset clears everything and stays usable", func() {
			So(s.Reset(ctx), ShouldBeNil)

			n, err := s.Stream().Len(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)

			hit, err := s.CheckIP(ctx, "10.0.0.99")
			So(err, ShouldBeNil)
			So(hit, ShouldBeFalse)

			_, err = s.Ingest(ctx, model.LoginEvent{
				UserID: "alice", IP: "203.0.113.1", Location: "New York, US", Timestamp: workingHoursTS,
			})
			So(err, ShouldBeNil)
		})
	})
}

func TestHealth(t *testing.T) {
	Convey("Given a running service", t, func() {
		s := newTestService(t)
		ctx := context.Background()

		h := s.Health(ctx)
		So(h.RedisOK, ShouldBeTrue)
		So(h.Capabilities.TimeSeries, ShouldBeFalse)
		So(h.Capabilities.Search, ShouldBeFalse)
		So(h.Capabilities.Bloom, ShouldBeFalse)

		Convey("the model reports trained after the first score", func() {
			So(h.ModelTrained, ShouldBeFalse)
			_, err := s.Ingest(ctx, model.LoginEvent{
				UserID: "alice", IP: "203.0.113.1", Location: "New York, US", Timestamp: workingHoursTS,
			})
			So(err, ShouldBeNil)
			So(s.Health(ctx).ModelTrained, ShouldBeTrue)
		})
	})
}

func TestModelPersistence(t *testing.T) {
	Convey("Given a service configured with a model path", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "model.json")
		mr := miniredis.RunT(t)

		cfg := config.New()
		cfg.RedisAddr = mr.Addr()
		cfg.ModelPath = path
		ctx := context.Background()

		s, err := NewService(ctx, cfg)
		So(err, ShouldBeNil)

		_, err = s.Ingest(ctx, model.LoginEvent{
			UserID: "alice", IP: "203.0.113.1", Location: "New York, US", Timestamp: workingHoursTS,
		})
		So(err, ShouldBeNil)
		So(s.Close(ctx), ShouldBeNil)

		Convey("a new service restores the trained model", func() {
			s2, err := NewService(ctx, cfg)
			So(err, ShouldBeNil)
			defer func() { _ = s2.Close(ctx) }()
			So(s2.scorer.Trained(), ShouldBeTrue)
		})
	})
}

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

func sampleAlert(id, user, ip, location string, ts int64, score float64) *model.SecurityAlert {
	return &model.SecurityAlert{
		ID:        id,
		UserID:    user,
		IP:        ip,
		Location:  location,
		Timestamp: ts,
		Score:     score,
		Details:   map[string]string{"reason": "anomaly"},
	}
}

func TestAlertsFallback(t *testing.T) {
	Convey("Given an alert store on a core-only server", t, func() {
		c := newTestClient(t)
		ctx := context.Background()
		alerts := NewAlertStore(c, 100)
		So(alerts.Ensure(ctx), ShouldBeNil)

		Convey("a stored alert round-trips", func() {
			in := sampleAlert("a1", "alice", "203.0.113.9", "Paris, France", 1000, 0.91)
			in.IsMaliciousIP = true
			in.GeoJumpKM = 5800
			So(alerts.Put(ctx, in), ShouldBeNil)

			out, err := alerts.Get(ctx, "a1")
			So(err, ShouldBeNil)
			So(out, ShouldResemble, in)
		})

		Convey("a missing alert yields ErrNotFound", func() {
			_, err := alerts.Get(ctx, "missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("search returns newest first", func() {
			So(alerts.Put(ctx, sampleAlert("a1", "alice", "1.1.1.1", "London, UK", 1000, 0.85)), ShouldBeNil)
			So(alerts.Put(ctx, sampleAlert("a2", "bob", "2.2.2.2", "Tokyo, Japan", 3000, 0.95)), ShouldBeNil)
			So(alerts.Put(ctx, sampleAlert("a3", "alice", "3.3.3.3", "London, UK", 2000, 0.82)), ShouldBeNil)

			out, err := alerts.Search(ctx, AlertFilter{})
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 3)
			So(out[0].ID, ShouldEqual, "a2")
			So(out[1].ID, ShouldEqual, "a3")
			So(out[2].ID, ShouldEqual, "a1")
		})

		Convey("filters narrow the results", func() {
			So(alerts.Put(ctx, sampleAlert("a1", "alice", "1.1.1.1", "London, UK", 1000, 0.85)), ShouldBeNil)
			So(alerts.Put(ctx, sampleAlert("a2", "bob", "2.2.2.2", "Tokyo, Japan", 3000, 0.95)), ShouldBeNil)
			So(alerts.Put(ctx, sampleAlert("a3", "alice", "3.3.3.3", "London, UK", 2000, 0.82)), ShouldBeNil)

			Convey("by user", func() {
				out, err := alerts.Search(ctx, AlertFilter{UserID: "alice"})
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 2)
				So(out[0].ID, ShouldEqual, "a3")
			})

			Convey("by minimum score", func() {
				min := 0.9
				out, err := alerts.Search(ctx, AlertFilter{MinScore: &min})
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0].ID, ShouldEqual, "a2")
			})

			Convey("by time window", func() {
				start, end := int64(1500), int64(2500)
				out, err := alerts.Search(ctx, AlertFilter{Start: &start, End: &end})
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0].ID, ShouldEqual, "a3")
			})

			Convey("by location substring, case-insensitive", func() {
				out, err := alerts.Search(ctx, AlertFilter{LocationContains: "london"})
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 2)
			})

			Convey("by ip", func() {
				out, err := alerts.Search(ctx, AlertFilter{IP: "2.2.2.2"})
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0].ID, ShouldEqual, "a2")
			})

			Convey("with a limit", func() {
				out, err := alerts.Search(ctx, AlertFilter{Limit: 2})
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 2)
				So(out[0].ID, ShouldEqual, "a2")
			})
		})
	})
}

func TestCollectAlerts(t *testing.T) {
	// 150 alerts newest first; only the oldest 50 carry the location the
	// in-process filter wants, so every match sits past the first page.
	pool := make([]*model.SecurityAlert, 0, 150)
	for i := 0; i < 150; i++ {
		ts := int64(10000 - i)
		location := "Tokyo, Japan"
		if i >= 100 {
			location = "London, UK"
		}
		pool = append(pool, sampleAlert(fmt.Sprintf("a%03d", i), "alice", "1.1.1.1", location, ts, 0.9))
	}
	var calls int
	fetch := func(offset int) ([]*model.SecurityAlert, error) {
		calls++
		if offset >= len(pool) {
			return nil, nil
		}
		end := offset + searchPageSize
		if end > len(pool) {
			end = len(pool)
		}
		return pool[offset:end], nil
	}

	Convey("Given candidates whose matches all sit past the first page", t, func() {
		calls = 0
		f := AlertFilter{UserID: "alice", LocationContains: "london"}

		Convey("collection keeps paging until the candidates run out", func() {
			out, err := collectAlerts(f, 100, searchPageSize, fetch)
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 50)
			So(out[0].Location, ShouldEqual, "London, UK")
			So(calls, ShouldEqual, 2)
		})

		Convey("the limit still bounds the matches", func() {
			out, err := collectAlerts(f, 10, searchPageSize, fetch)
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 10)
		})
	})

	Convey("Given a filter the first page already satisfies", t, func() {
		calls = 0
		out, err := collectAlerts(AlertFilter{}, 100, searchPageSize, fetch)
		So(err, ShouldBeNil)
		So(out, ShouldHaveLength, 100)
		So(calls, ShouldEqual, 1)
	})
}

func TestBuildAlertQuery(t *testing.T) {
	Convey("Index query construction", t, func() {
		So(buildAlertQuery(AlertFilter{}), ShouldEqual, "*")

		min := 0.8
		start := int64(100)
		q := buildAlertQuery(AlertFilter{UserID: "alice", MinScore: &min, Start: &start})
		So(q, ShouldContainSubstring, "@user_id:{alice}")
		So(q, ShouldContainSubstring, "@score:[0.8 +inf]")
		So(q, ShouldContainSubstring, "@timestamp:[100 +inf]")
	})

	Convey("Tag escaping", t, func() {
		So(escapeTag("203.0.113.9"), ShouldEqual, `203\.0\.113\.9`)
		So(escapeTag("plain"), ShouldEqual, "plain")
	})
}

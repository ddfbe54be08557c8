package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ajitpdevops/rediguard/pkg/metrics"
)

// newTestClient connects to an in-process Redis. It speaks the core
// protocol only, so the probe resolves every capability to its fallback.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), WithAddr(mr.Addr()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient(t *testing.T) {
	Convey("Given a reachable core-only server", t, func() {
		c := newTestClient(t)

		Convey("the capability probe reports no modules", func() {
			caps := c.Capabilities()
			So(caps.TimeSeries, ShouldBeFalse)
			So(caps.Search, ShouldBeFalse)
			So(caps.Bloom, ShouldBeFalse)
		})

		Convey("Ping succeeds", func() {
			So(c.Ping(context.Background()), ShouldBeNil)
		})

		Convey("Reset clears persisted state", func() {
			ctx := context.Background()
			So(c.Redis().Set(ctx, "k", "v", 0).Err(), ShouldBeNil)
			So(c.Reset(ctx), ShouldBeNil)
			n, err := c.Redis().Exists(ctx, "k").Result()
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})
	})

	Convey("Given an unreachable server", t, func() {
		_, err := New(context.Background(), WithAddr("127.0.0.1:1"))
		So(err, ShouldNotBeNil)
		So(errors.Is(err, ErrConnectivity), ShouldBeTrue)
	})
}

// storeErrorCount reads the error counter for one store/op label pair.
func storeErrorCount(t *testing.T, storeName, op string) float64 {
	t.Helper()
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "rediguard_store_op_errors_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["store"] == storeName && labels["op"] == op {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestStoreErrorCounter(t *testing.T) {
	Convey("Given a key holding the wrong structure", t, func() {
		c := newTestClient(t)
		ctx := context.Background()
		alerts := NewAlertStore(c, 100)
		So(c.Redis().Set(ctx, alertKey("broken"), "not a hash", 0).Err(), ShouldBeNil)

		Convey("the failed operation increments the error counter", func() {
			before := storeErrorCount(t, "alerts", "get")
			_, err := alerts.Get(ctx, "broken")
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrNotFound), ShouldBeFalse)
			So(storeErrorCount(t, "alerts", "get"), ShouldEqual, before+1)
		})

		Convey("a plain miss is not counted as an error", func() {
			before := storeErrorCount(t, "alerts", "get")
			_, err := alerts.Get(ctx, "absent")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(storeErrorCount(t, "alerts", "get"), ShouldEqual, before)
		})
	})
}

func TestCommandKnown(t *testing.T) {
	Convey("Error classification", t, func() {
		So(commandKnown(nil), ShouldBeTrue)
		So(commandKnown(errFake("ERR unknown command `BF.EXISTS`")), ShouldBeFalse)
		So(commandKnown(errFake("Unknown Command 'TS.INFO'")), ShouldBeFalse)
		So(commandKnown(errFake("TSDB: the key does not exist")), ShouldBeTrue)
		So(commandKnown(errFake("wrong number of arguments")), ShouldBeTrue)
	})
}

type errFake string

func (e errFake) Error() string { return string(e) }

package logger

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		Init("debug")

		Convey("Get returns a usable logger", func() {
			l := Get()
			So(l, ShouldNotBeNil)
			// Must not panic at any level.
			ctx := context.Background()
			l.Debug(ctx, "debug", String("k", "v"))
			l.Info(ctx, "info", Int("n", 1), Float64("f", 0.5))
			l.Warn(ctx, "warn", Bool("b", true))
			l.Error(ctx, "error", Error(nil))
		})

		Convey("Named returns a scoped logger", func() {
			So(Named("pipeline"), ShouldNotBeNil)
		})

		Convey("SetLevelString accepts known levels", func() {
			So(SetLevelString("debug"), ShouldBeNil)
			So(SetLevelString("INFO"), ShouldBeNil)
			So(SetLevelString("warning"), ShouldBeNil)
			So(SetLevelString("error"), ShouldBeNil)
		})

		Convey("SetLevelString rejects unknown levels", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}

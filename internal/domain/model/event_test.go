package model

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoginEventValidate(t *testing.T) {
	Convey("Given a complete login event", t, func() {
		e := LoginEvent{UserID: "alice", IP: "203.0.113.1", Location: "New York, US", Timestamp: 1700000000}
		So(e.Validate(), ShouldBeNil)

		Convey("a malformed IP string is still accepted at the boundary", func() {
			e.IP = "not-an-ip"
			So(e.Validate(), ShouldBeNil)
		})
	})

	Convey("Given events with missing fields", t, func() {
		cases := []LoginEvent{
			{IP: "1.2.3.4", Location: "x", Timestamp: 1},
			{UserID: "u", Location: "x", Timestamp: 1},
			{UserID: "u", IP: "1.2.3.4", Timestamp: 1},
			{UserID: "u", IP: "1.2.3.4", Location: "x"},
			{UserID: "u", IP: "1.2.3.4", Location: "x", Timestamp: -5},
		}
		for _, e := range cases {
			err := e.Validate()
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrMalformedEvent), ShouldBeTrue)
		}
	})
}

func TestNewAlertID(t *testing.T) {
	Convey("Alert IDs are opaque and unique", t, func() {
		a, b := NewAlertID(), NewAlertID()
		So(a, ShouldNotBeEmpty)
		So(a, ShouldNotEqual, b)
	})
}

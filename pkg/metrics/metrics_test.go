package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("recording helpers do not panic", func() {
			RecordEventProcessed()
			RecordAnomalyDetected()
			RecordAlertCreated()
			RecordMaliciousIPHit()
			RecordPartialWrite("alerts")
			RecordPipelineLatency(12.5)
			RecordScoringLatency(0.4)
			RecordStoreOp("timeseries", "append", 1.1)
			RecordStoreError("timeseries", "range")
			RecordStreamAppend()
			RecordStreamDelivery()
			RecordStreamAck()
			RecordStreamReclaim()
			SetCapabilityIndexed("bloom", false)
			SetCapabilityIndexed("search", true)
			RecordHTTPRequest("events", "POST", "202")
			RecordHTTPRequestDuration("events", "POST", "202", 3.2)
		})

		Convey("the private registry gathers our metrics", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			names := make(map[string]bool, len(families))
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["rediguard_events_processed_total"], ShouldBeTrue)
			So(names["rediguard_capability_indexed"], ShouldBeTrue)
		})

		Convey("a second manager can attach to a fresh registry", func() {
			reg := prometheus.NewRegistry()
			m := NewManager(WithRegistry(reg), WithNamespace("test"))
			So(m, ShouldNotBeNil)
		})
	})
}

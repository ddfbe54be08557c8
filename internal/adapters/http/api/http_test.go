package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ajitpdevops/rediguard/internal/app"
	"github.com/ajitpdevops/rediguard/internal/config"
)

// compile-time check that the service satisfies the handler contract
var _ Dependencies = (*app.Service)(nil)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.New()
	cfg.RedisAddr = mr.Addr()

	svc, err := app.NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	mux := http.NewServeMux()
	NewServer(svc).Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp, decodeBody(t, resp)
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestLoginEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		ts := newTestServer(t)

		Convey("a valid login is ingested and assessed", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/events/login",
				`{"user_id":"alice","ip":"203.0.113.1","location":"New York, US","timestamp":1686132000}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(body["stream_id"], ShouldNotBeEmpty)
			So(body["anomaly_score"], ShouldNotBeNil)
			So(body["is_malicious_ip"], ShouldEqual, false)
		})

		Convey("an RFC3339 timestamp is accepted", func() {
			resp, _ := postJSON(t, ts.URL+"/api/v1/events/login",
				`{"user_id":"alice","ip":"203.0.113.1","location":"New York, US","timestamp":"2023-06-07T10:00:00Z"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		})

		Convey("a missing user_id is rejected with 400", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/events/login",
				`{"ip":"203.0.113.1","location":"New York, US","timestamp":1686132000}`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, "bad_request")
		})

		Convey("an unparsable timestamp is rejected with 400", func() {
			resp, _ := postJSON(t, ts.URL+"/api/v1/events/login",
				`{"user_id":"alice","ip":"203.0.113.1","location":"New York, US","timestamp":"yesterday"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("a malformed body is rejected with 400", func() {
			resp, _ := postJSON(t, ts.URL+"/api/v1/events/login", `{not json`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestReputationEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		ts := newTestServer(t)

		Convey("adding then checking an IP round-trips", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/security/add-malicious-ip", `{"ip":"10.0.0.99"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(body["added"], ShouldEqual, true)

			resp, body = getJSON(t, ts.URL+"/api/v1/ip/10.0.0.99/reputation")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["malicious"], ShouldEqual, true)
		})

		Convey("re-adding an IP reports it was already present", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/security/add-malicious-ip", `{"ip":"10.0.0.99"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(body["added"], ShouldEqual, true)

			resp, body = postJSON(t, ts.URL+"/api/v1/security/add-malicious-ip", `{"ip":"10.0.0.99"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(body["added"], ShouldEqual, false)
		})

		Convey("an unknown IP is not malicious", func() {
			resp, body := getJSON(t, ts.URL+"/api/v1/ip/10.0.0.1/reputation")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["malicious"], ShouldEqual, false)
		})

		Convey("a missing ip field is rejected", func() {
			resp, _ := postJSON(t, ts.URL+"/api/v1/security/add-malicious-ip", `{}`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAlertEndpoints(t *testing.T) {
	Convey("Given an ingested event from a known-bad IP", t, func() {
		ts := newTestServer(t)

		resp, _ := postJSON(t, ts.URL+"/api/v1/security/add-malicious-ip", `{"ip":"198.51.100.7"}`)
		So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		resp, body := postJSON(t, ts.URL+"/api/v1/events/login",
			`{"user_id":"alice","ip":"198.51.100.7","location":"New York, US","timestamp":1686132000}`)
		So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		alert, ok := body["alert"].(map[string]any)
		So(ok, ShouldBeTrue)

		Convey("search finds the alert and echoes the query", func() {
			resp, body := getJSON(t, ts.URL+"/api/v1/alerts/search?user_id=alice&limit=10")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["count"], ShouldEqual, 1)
			query, _ := body["query"].(map[string]any)
			So(query["user_id"], ShouldEqual, "alice")
		})

		Convey("the alert is fetchable by id", func() {
			resp, body := getJSON(t, ts.URL+"/api/v1/alerts/"+alert["id"].(string))
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["user_id"], ShouldEqual, "alice")
			So(body["is_malicious_ip"], ShouldEqual, true)
		})

		Convey("a missing alert id answers 404", func() {
			resp, _ := getJSON(t, ts.URL+"/api/v1/alerts/nope")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("an invalid filter answers 400", func() {
			resp, _ := getJSON(t, ts.URL+"/api/v1/alerts/search?min_score=high")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHistoryAndSimilarEndpoints(t *testing.T) {
	Convey("Given ingested events", t, func() {
		ts := newTestServer(t)

		for _, user := range []string{"u1", "u2"} {
			resp, _ := postJSON(t, ts.URL+"/api/v1/events/login",
				`{"user_id":"`+user+`","ip":"203.0.113.1","location":"New York, US","timestamp":1686132000}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		}

		Convey("anomaly history returns the user's samples", func() {
			resp, body := getJSON(t, ts.URL+"/api/v1/users/u1/anomaly-history?hours=24")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["user_id"], ShouldEqual, "u1")
			So(body["samples"], ShouldNotBeNil)
		})

		Convey("an invalid hours value answers 400", func() {
			resp, _ := getJSON(t, ts.URL+"/api/v1/users/u1/anomaly-history?hours=-1")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("similar behavior returns neighbors", func() {
			resp, body := getJSON(t, ts.URL+"/api/v1/users/u1/similar-behavior?limit=5")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["neighbors"], ShouldNotBeNil)
		})

		Convey("an unknown user answers 404", func() {
			resp, _ := getJSON(t, ts.URL+"/api/v1/users/nobody/similar-behavior")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestAdminAndHealthEndpoints(t *testing.T) {
	Convey("Given the API server", t, func() {
		ts := newTestServer(t)

		Convey("reset requires confirmation", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/admin/reset", `{}`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, "confirmation_required")
		})

		Convey("a confirmed reset succeeds", func() {
			resp, body := postJSON(t, ts.URL+"/api/v1/admin/reset?confirm=true", `{}`)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["status"], ShouldEqual, "reset")
		})

		Convey("health reports connectivity and capability mode", func() {
			resp, body := getJSON(t, ts.URL+"/api/v1/health")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["redis_ok"], ShouldEqual, true)
			caps, _ := body["capabilities"].(map[string]any)
			So(caps["timeseries"], ShouldEqual, false)
		})

		Convey("the metrics endpoint serves Prometheus text", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}

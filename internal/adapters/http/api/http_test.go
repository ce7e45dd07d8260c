package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/creditconsole/internal/adapters/http/api"
	"github.com/okian/creditconsole/internal/adapters/provider"
	"github.com/okian/creditconsole/internal/adapters/provider/fake"
	service "github.com/okian/creditconsole/internal/app"
	"github.com/okian/creditconsole/internal/domain/model"
)

type harness struct {
	console  *httptest.Server
	upstream *httptest.Server
	provider *fake.Server
	portfol  fake.Portfolio
}

func newHarness(t *testing.T, identity model.Identity) harness {
	t.Helper()
	p := fake.Generate(4, 24, 5, time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC))
	fs := fake.NewServer(p)
	upstream := httptest.NewServer(fs.Handler())
	t.Cleanup(upstream.Close)

	client, err := provider.NewClient(upstream.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	svc := service.New(client, service.WithIdentity(identity))
	console := httptest.NewServer(api.NewServer(svc).Routes())
	t.Cleanup(console.Close)
	return harness{console: console, upstream: upstream, provider: fs, portfol: p}
}

func (h harness) do(method, path, body string) (int, map[string]any) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, h.console.URL+path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		_ = json.Unmarshal(raw, &out)
	} else {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

var admin = model.Identity{Name: "Ana", Role: model.RoleAdmin}

func TestHealthAndMetrics(t *testing.T) {
	Convey("Given the console API", t, func() {
		h := newHarness(t, admin)

		Convey("Then /healthz answers ok", func() {
			status, body := h.do(http.MethodGet, "/healthz", "")
			So(status, ShouldEqual, http.StatusOK)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("Then /metrics exposes console metrics after a request", func() {
			h.do(http.MethodGet, "/api/v1/view", "")
			status, body := h.do(http.MethodGet, "/metrics", "")
			So(status, ShouldEqual, http.StatusOK)
			So(body["raw"], ShouldContainSubstring, "creditconsole_console_http_requests_total")
		})

		Convey("Then the API reference is mounted", func() {
			status, body := h.do(http.MethodGet, "/openapi.yaml", "")
			So(status, ShouldEqual, http.StatusOK)
			So(body["raw"], ShouldContainSubstring, "/api/v1/limit/open")
		})
	})
}

func TestFilterAndView(t *testing.T) {
	Convey("Given the console API", t, func() {
		h := newHarness(t, admin)
		id := h.portfol.Entities[0].Ref.ID

		Convey("When a range filter is applied", func() {
			status, body := h.do(http.MethodPut, "/api/v1/filter",
				`{"entity_id":"`+id+`","window_months":24,"start":"2024-06","end":"2024-09"}`)

			Convey("Then the view carries the range and the entity", func() {
				So(status, ShouldEqual, http.StatusOK)
				spec := body["spec"].(map[string]any)
				window := spec["window"].(map[string]any)
				So(spec["entity_id"], ShouldEqual, id)
				So(window["mode"], ShouldEqual, "range")
				So(window["start"], ShouldEqual, "2024-06")
				So(body["entity_name"], ShouldEqual, h.portfol.Entities[0].Ref.Name)
				So(len(body["volume"].([]any)), ShouldEqual, 4)
			})
		})

		Convey("When the body has an unknown field", func() {
			status, body := h.do(http.MethodPut, "/api/v1/filter", `{"clinic":"x"}`)
			So(status, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, "bad_request")
		})

		Convey("When an invalid tab is set", func() {
			status, body := h.do(http.MethodPut, "/api/v1/tab", `{"tab":"settings"}`)

			Convey("Then field details are returned", func() {
				So(status, ShouldEqual, http.StatusBadRequest)
				So(body["details"].(map[string]any)["tab"], ShouldContainSubstring, "one of")
			})
		})

		Convey("When a valid tab is set", func() {
			status, body := h.do(http.MethodPut, "/api/v1/tab", `{"tab":"portfolio"}`)
			So(status, ShouldEqual, http.StatusOK)
			So(body["tab"], ShouldEqual, "portfolio")
		})

		Convey("When the summary is requested before the entity's dashboard loads", func() {
			h.upstream.Close()
			h.do(http.MethodPost, "/api/v1/entities/"+id+"/select", "")
			status, body := h.do(http.MethodGet, "/api/v1/summary", "")
			So(status, ShouldEqual, http.StatusConflict)
			So(body["code"], ShouldEqual, "dashboard_not_loaded")
		})

		Convey("When the summary is requested for a loaded entity", func() {
			h.do(http.MethodPost, "/api/v1/entities/"+id+"/select", "")
			status, body := h.do(http.MethodGet, "/api/v1/summary", "")
			So(status, ShouldEqual, http.StatusOK)
			So(body["summary"], ShouldContainSubstring, h.portfol.Entities[0].Ref.Name)
		})

		Convey("When the summary is requested for the portfolio", func() {
			status, body := h.do(http.MethodGet, "/api/v1/summary", "")
			So(status, ShouldEqual, http.StatusConflict)
			So(body["code"], ShouldEqual, "no_entity_selected")
		})
	})
}

func TestRankingAndEntities(t *testing.T) {
	Convey("Given a loaded portfolio", t, func() {
		h := newHarness(t, admin)
		status, _ := h.do(http.MethodPost, "/api/v1/refresh", "")
		So(status, ShouldEqual, http.StatusOK)

		Convey("Then the ranking honours top", func() {
			_, body := h.do(http.MethodGet, "/api/v1/ranking?top=2", "")
			So(body["raw"], ShouldStartWith, "[")
			var rows []map[string]any
			So(json.Unmarshal([]byte(body["raw"].(string)), &rows), ShouldBeNil)
			So(len(rows), ShouldEqual, 2)
		})

		Convey("Then a bad top is rejected", func() {
			status, _ := h.do(http.MethodGet, "/api/v1/ranking?top=abc", "")
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then entities filter by name", func() {
			_, body := h.do(http.MethodGet, "/api/v1/entities?name=clinica%2003", "")
			var rows []map[string]any
			So(json.Unmarshal([]byte(body["raw"].(string)), &rows), ShouldBeNil)
			So(len(rows), ShouldEqual, 1)
			So(rows[0]["name"], ShouldEqual, "Clinica 03")
		})
	})
}

func TestLimitEndpoints(t *testing.T) {
	Convey("Given an admin on one entity", t, func() {
		h := newHarness(t, admin)
		id := h.portfol.Entities[1].Ref.ID
		status, _ := h.do(http.MethodPost, "/api/v1/entities/"+id+"/select", "")
		So(status, ShouldEqual, http.StatusOK)

		Convey("When a draft is edited before opening", func() {
			status, body := h.do(http.MethodPut, "/api/v1/limit/draft", `{"limit":10}`)
			So(status, ShouldEqual, http.StatusConflict)
			So(body["code"], ShouldEqual, "invalid_state")
		})

		Convey("When a negative limit is submitted", func() {
			h.do(http.MethodPost, "/api/v1/limit/open", "")
			h.do(http.MethodPut, "/api/v1/limit/draft", `{"limit":-10,"note":"x"}`)
			status, body := h.do(http.MethodPost, "/api/v1/limit/submit", "")

			Convey("Then the provider rejection surfaces as 422 and the panel stays open", func() {
				So(status, ShouldEqual, http.StatusUnprocessableEntity)
				So(body["code"], ShouldEqual, "validation_rejected")
				_, view := h.do(http.MethodGet, "/api/v1/view", "")
				So(view["workflow"].(map[string]any)["state"], ShouldEqual, "editing")
			})
		})

		Convey("When a limit is approved", func() {
			h.do(http.MethodPost, "/api/v1/limit/open", "")
			h.do(http.MethodPut, "/api/v1/limit/draft", `{"limit":25000,"note":"ok"}`)
			status, body := h.do(http.MethodPost, "/api/v1/limit/submit", "")

			Convey("Then the view shows the new approved limit and history", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(body["kpis"].(map[string]any)["approved_limit"], ShouldEqual, 25000.0)
				So(len(body["history"].([]any)), ShouldEqual, 1)
			})
		})

		Convey("When a revocation is not confirmed", func() {
			status, body := h.do(http.MethodPost, "/api/v1/entities/"+id+"/revoke", `{"confirm":false}`)
			So(status, ShouldEqual, http.StatusConflict)
			So(body["code"], ShouldEqual, "not_confirmed")
		})

		Convey("When a revocation names a different entity", func() {
			status, _ := h.do(http.MethodPost, "/api/v1/entities/"+id+"/revoke", `{"confirm":true,"name":"someone else"}`)
			So(status, ShouldEqual, http.StatusConflict)
		})

		Convey("When another entity's limit is revoked", func() {
			other := h.portfol.Entities[2].Ref
			status, body := h.do(http.MethodPost, "/api/v1/entities/"+other.ID+"/revoke",
				`{"confirm":true,"name":"`+other.Name+`"}`)

			Convey("Then only that entity gets the record and the selection stays", func() {
				So(status, ShouldEqual, http.StatusOK)
				So(body["spec"].(map[string]any)["entity_id"], ShouldEqual, id)
				revoked := h.provider.History(other.ID)
				So(len(revoked), ShouldEqual, 1)
				So(revoked[0].IsRevocation(), ShouldBeTrue)
				So(h.provider.History(id), ShouldBeEmpty)
			})
		})

		Convey("When a revocation is confirmed", func() {
			status, body := h.do(http.MethodPost, "/api/v1/entities/"+id+"/revoke",
				`{"confirm":true,"name":"`+h.portfol.Entities[1].Ref.Name+`"}`)
			So(status, ShouldEqual, http.StatusOK)
			history := body["history"].([]any)
			So(len(history), ShouldEqual, 1)
			So(history[0].(map[string]any)["approved_limit"], ShouldBeNil)
		})
	})

	Convey("Given an operator without the admin role", t, func() {
		h := newHarness(t, model.Identity{Name: "Vic", Role: "analyst"})
		h.do(http.MethodPost, "/api/v1/entities/"+h.portfol.Entities[0].Ref.ID+"/select", "")

		Convey("Then opening the panel is forbidden", func() {
			status, body := h.do(http.MethodPost, "/api/v1/limit/open", "")
			So(status, ShouldEqual, http.StatusForbidden)
			So(body["code"], ShouldEqual, "forbidden")
		})
	})
}

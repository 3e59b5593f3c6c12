package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/judgeflow/internal/adapters/http/api"
	"github.com/okian/judgeflow/internal/adapters/repository"
	service "github.com/okian/judgeflow/internal/app"
	"github.com/okian/judgeflow/internal/domain/allocation"
	"github.com/okian/judgeflow/internal/domain/coverage"
	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/pkg/logger"
)

type mockDeps struct {
	generate func(requestID string, req model.GenerateRequest) (service.GenerateResult, error)
	preview  func(req model.GenerateRequest) (model.GeneratePlan, error)
	coverage func(floorID string) (coverage.Report, error)
	submit   func(id string, scores map[string]int) (model.Assignment, error)
	cancel   func(id string) error

	lastRequestID string
	lastRequest   model.GenerateRequest
	lastScores    map[string]int
}

func (m *mockDeps) Generate(_ context.Context, requestID string, req model.GenerateRequest) (service.GenerateResult, error) {
	m.lastRequestID, m.lastRequest = requestID, req
	return m.generate(requestID, req)
}

func (m *mockDeps) Preview(_ context.Context, req model.GenerateRequest) (model.GeneratePlan, error) {
	m.lastRequest = req
	return m.preview(req)
}

func (m *mockDeps) Coverage(_ context.Context, floorID string) (coverage.Report, error) {
	return m.coverage(floorID)
}

func (m *mockDeps) Submit(_ context.Context, id string, scores map[string]int) (model.Assignment, error) {
	m.lastScores = scores
	return m.submit(id, scores)
}

func (m *mockDeps) Cancel(_ context.Context, id string) error { return m.cancel(id) }

type mockStats map[string]interface{}

func (m mockStats) GetStats() map[string]interface{} { return m }

func newMockDeps() *mockDeps {
	return &mockDeps{
		generate: func(requestID string, req model.GenerateRequest) (service.GenerateResult, error) {
			return service.GenerateResult{
				RequestID: requestID,
				Plan:      model.GeneratePlan{FloorID: req.FloorID, Summary: model.Summary{Requested: 1, Created: 1}},
				Assignments: []model.Assignment{
					{ID: "a1", JudgeID: req.JudgeIDs[0], TeamIDs: []string{"t1", "t2"}, FloorID: req.FloorID},
				},
				Message: "1 assignment created.",
			}, nil
		},
		preview: func(req model.GenerateRequest) (model.GeneratePlan, error) {
			return model.GeneratePlan{FloorID: req.FloorID}, nil
		},
		coverage: func(floorID string) (coverage.Report, error) {
			return coverage.Report{FloorID: floorID, Teams: 3, MaxReviews: 2, Skew: 2}, nil
		},
		submit: func(id string, _ map[string]int) (model.Assignment, error) {
			return model.Assignment{ID: id, Submitted: true}, nil
		},
		cancel: func(string) error { return nil },
	}
}

func do(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server without an admin guard", t, func() {
		ctx := context.Background()
		deps := newMockDeps()
		srv := api.NewServer(deps, mockStats{"started": true}, api.WithLogger(logger.Discard()))
		h := srv.Router(ctx)

		Convey("GET /healthz reports ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["status"], ShouldEqual, "ok")
		})

		Convey("GET /metrics exposes the registry", func() {
			_ = do(h, http.MethodGet, "/healthz", "")
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "judgeflow_")
		})

		Convey("GET /stats returns provider stats", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("POST /floors/{floorID}/generate creates assignments", func() {
			w := do(h, http.MethodPost, "/floors/f1/generate", `{"request_id":" r1 ","judge_ids":["j1"]}`)

			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.lastRequestID, ShouldEqual, "r1")
			So(deps.lastRequest, ShouldResemble, model.GenerateRequest{FloorID: "f1", JudgeIDs: []string{"j1"}})
			body := decode(w)
			So(body["status"], ShouldEqual, "created")
			So(body["message"], ShouldEqual, "1 assignment created.")
			So(body["assignments"], ShouldHaveLength, 1)
			So(body["failures"], ShouldHaveLength, 0)
		})

		Convey("Generate with nothing created answers 200", func() {
			deps.generate = func(requestID string, req model.GenerateRequest) (service.GenerateResult, error) {
				return service.GenerateResult{RequestID: "x", Message: "0 assignments created."}, nil
			}
			w := do(h, http.MethodPost, "/floors/f1/generate", `{"judge_ids":["j1"]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["assignments"], ShouldHaveLength, 0)
		})

		Convey("A duplicate generate answers 200 with status duplicate", func() {
			deps.generate = func(requestID string, _ model.GenerateRequest) (service.GenerateResult, error) {
				return service.GenerateResult{RequestID: requestID}, service.ErrDuplicateRequest
			}
			w := do(h, http.MethodPost, "/floors/f1/generate", `{"request_id":"r1","judge_ids":["j1"]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["status"], ShouldEqual, "duplicate")
			So(body["duplicate"], ShouldEqual, true)
		})

		Convey("Malformed generate bodies are rejected", func() {
			for _, body := range []string{"", "{", `{"judge_ids":[]}`, `{"judge_ids":["j1"," "]}`} {
				w := do(h, http.MethodPost, "/floors/f1/generate", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("POST /floors/{floorID}/preview returns the plan and message", func() {
			w := do(h, http.MethodPost, "/floors/f2/preview", `{"judge_ids":["j1","j2"]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastRequest.FloorID, ShouldEqual, "f2")
			body := decode(w)
			So(body["message"], ShouldEqual, "0 assignments created.")
			plan := body["plan"].(map[string]interface{})
			So(plan["floor_id"], ShouldEqual, "f2")
			So(plan["created"], ShouldHaveLength, 0)
		})

		Convey("GET /floors/{floorID}/coverage returns the report", func() {
			w := do(h, http.MethodGet, "/floors/f1/coverage", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["floor_id"], ShouldEqual, "f1")
			So(body["skew"], ShouldEqual, float64(2))
		})

		Convey("POST /assignments/{id}/submit passes scores through", func() {
			w := do(h, http.MethodPost, "/assignments/a1/submit", `{"scores":{"t1":7}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastScores, ShouldResemble, map[string]int{"t1": 7})
			So(decode(w)["submitted"], ShouldEqual, true)
		})

		Convey("Submit accepts an empty body", func() {
			w := do(h, http.MethodPost, "/assignments/a1/submit", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastScores, ShouldBeNil)
		})

		Convey("DELETE /assignments/{id} answers 204", func() {
			w := do(h, http.MethodDelete, "/assignments/a1", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("Unknown routes are not served", func() {
			So(do(h, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given handlers whose dependencies fail", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, nil, api.WithLogger(logger.Discard())).Router(context.Background())

		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("%w: no judges", allocation.ErrInvalidRequest), http.StatusBadRequest, "bad_request"},
			{fmt.Errorf("%w: a9", repository.ErrNotFound), http.StatusNotFound, "not_found"},
			{fmt.Errorf("%w: team t1 locked", repository.ErrCommitConflict), http.StatusConflict, "conflict"},
			{repository.ErrAlreadySubmitted, http.StatusConflict, "already_submitted"},
			{fmt.Errorf("%w: floor f1", service.ErrBackpressure), http.StatusTooManyRequests, "backpressure"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
			{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
		}

		for _, tc := range cases {
			err := tc.err
			deps.generate = func(string, model.GenerateRequest) (service.GenerateResult, error) {
				return service.GenerateResult{}, err
			}
			deps.cancel = func(string) error { return err }

			w := do(h, http.MethodPost, "/floors/f1/generate", `{"judge_ids":["j1"]}`)
			So(w.Code, ShouldEqual, tc.status)
			So(decode(w)["code"], ShouldEqual, tc.code)

			w = do(h, http.MethodDelete, "/assignments/a1", "")
			So(w.Code, ShouldEqual, tc.status)
		}
	})
}

func TestServer_AdminGuard(t *testing.T) {
	Convey("Given a server guarded by a JWT secret", t, func() {
		auth := api.NewAuthenticator("s3cret")
		deps := newMockDeps()
		h := api.NewServer(deps, nil, api.WithAuthenticator(auth), api.WithLogger(logger.Discard())).
			Router(context.Background())

		admin, err := auth.GenerateToken("alice", api.RoleAdmin, time.Hour)
		So(err, ShouldBeNil)

		Convey("Requests without a token get 401", func() {
			w := do(h, http.MethodPost, "/floors/f1/generate", `{"judge_ids":["j1"]}`)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decode(w)["code"], ShouldEqual, "unauthorized")
		})

		Convey("A token signed with another secret gets 401", func() {
			forged, _ := api.NewAuthenticator("other").GenerateToken("mallory", api.RoleAdmin, time.Hour)
			w := do(h, http.MethodDelete, "/assignments/a1", "", "Authorization", "Bearer "+forged)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("An expired token gets 401", func() {
			expired, _ := auth.GenerateToken("alice", api.RoleAdmin, -time.Minute)
			w := do(h, http.MethodPost, "/assignments/a1/submit", "", "Authorization", "Bearer "+expired)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decode(w)["message"], ShouldContainSubstring, "token expired")
		})

		Convey("A non-admin token gets 403", func() {
			judge, _ := auth.GenerateToken("bob", "judge", time.Hour)
			w := do(h, http.MethodPost, "/floors/f1/generate", `{"judge_ids":["j1"]}`, "Authorization", "Bearer "+judge)
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("An admin token is accepted", func() {
			w := do(h, http.MethodPost, "/floors/f1/generate", `{"judge_ids":["j1"]}`, "Authorization", "Bearer "+admin)
			So(w.Code, ShouldEqual, http.StatusCreated)

			w = do(h, http.MethodDelete, "/assignments/a1", "", "Authorization", "Bearer "+admin)
			So(w.Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("Read routes stay open", func() {
			So(do(h, http.MethodPost, "/floors/f1/preview", `{"judge_ids":["j1"]}`).Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/floors/f1/coverage", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestAuthenticator(t *testing.T) {
	Convey("Given an authenticator", t, func() {
		auth := api.NewAuthenticator("k")

		Convey("Then a generated token round-trips its claims", func() {
			tok, err := auth.GenerateToken("alice", api.RoleAdmin, time.Minute)
			So(err, ShouldBeNil)
			claims, err := auth.ValidateToken(tok)
			So(err, ShouldBeNil)
			So(claims.Subject, ShouldEqual, "alice")
			So(claims.Role, ShouldEqual, api.RoleAdmin)
		})

		Convey("Then an empty secret disables the guard", func() {
			So(api.NewAuthenticator("").Enabled(), ShouldBeFalse)
			So(auth.Enabled(), ShouldBeTrue)
		})

		Convey("Then garbage is rejected", func() {
			_, err := auth.ValidateToken("not-a-token")
			So(err, ShouldNotBeNil)
		})
	})
}

package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/comps/internal/adapters/http/api"
	"github.com/okian/comps/internal/adapters/repository"
	service "github.com/okian/comps/internal/app"
	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newTestService() *service.Service {
	store := repository.NewMemoryStore()
	recs := []*model.PropertyRecord{{
		ID:            "cook-target",
		CountyID:      "cook",
		City:          "Chicago",
		ZoningCode:    "I-2",
		Coordinates:   &model.Coordinates{Latitude: 41.85, Longitude: -87.65},
		BuildingArea:  40000,
		AssessedValue: 4_000_000,
		YearBuilt:     model.IntPtr(2000),
		DataSource:    "cook_assessor",
	}}
	for i := 0; i < 6; i++ {
		recs = append(recs, &model.PropertyRecord{
			ID:            fmt.Sprintf("cook-%02d", i),
			CountyID:      "cook",
			City:          "Chicago",
			ZoningCode:    []string{"I-2", "M-1", "I-1"}[i%3],
			Coordinates:   &model.Coordinates{Latitude: 41.85 + float64(i)/50, Longitude: -87.65},
			BuildingArea:  35000 + float64(i)*2000,
			AssessedValue: 3_500_000 + float64(i)*200_000,
			YearBuilt:     model.IntPtr(1998 + i),
			DataSource:    "cook_assessor",
		})
	}
	recs = append(recs, &model.PropertyRecord{ID: "dallas-00", CountyID: "dallas", City: "Dallas", ZoningCode: "IND", BuildingArea: 50000})
	if _, err := store.Upsert(context.Background(), recs...); err != nil {
		panic(err)
	}
	return service.New(
		service.WithStore(store),
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithLogger(logger.Nop()),
	)
}

func newTestRouter(svc *service.Service, opts ...api.Option) http.Handler {
	return api.NewServer(svc, svc, opts...).Routes(context.Background())
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type comparablesBody struct {
	Comparables []model.ComparableResult `json:"comparables"`
	Count       int                      `json:"count"`
	Analysis    struct {
		MarketPosition string `json:"market_position"`
	} `json:"analysis"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestProperties(t *testing.T) {
	Convey("Given an API server over a seeded store", t, func() {
		svc := newTestService()
		h := newTestRouter(svc)

		Convey("When fetching a stored property", func() {
			rec := do(h, http.MethodGet, "/api/properties/cook-target", "")

			Convey("Then the record is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got model.PropertyRecord
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got.ID, ShouldEqual, "cook-target")
				So(got.CountyID, ShouldEqual, "cook")
			})

			Convey("And a request id is attached", func() {
				So(rec.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When fetching an unknown property", func() {
			rec := do(h, http.MethodGet, "/api/properties/nope", "")

			Convey("Then 404 is returned with an error body", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				var body errorBody
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, "not_found")
			})
		})

		Convey("When ranking comparables for a stored id", func() {
			rec := do(h, http.MethodGet, "/api/properties/cook-target/comparables?top_k=3", "")

			Convey("Then at most top_k ranked results are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body comparablesBody
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(len(body.Comparables), ShouldBeLessThanOrEqualTo, 3)
				So(body.Count, ShouldEqual, len(body.Comparables))
				for i := 1; i < len(body.Comparables); i++ {
					So(body.Comparables[i-1].SimilarityScore, ShouldBeGreaterThanOrEqualTo, body.Comparables[i].SimilarityScore)
				}
				for _, c := range body.Comparables {
					So(c.Property.ID, ShouldNotEqual, "cook-target")
				}
			})
		})

		Convey("When top_k is not a number", func() {
			rec := do(h, http.MethodGet, "/api/properties/cook-target/comparables?top_k=abc", "")

			Convey("Then 400 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When posting an inline candidate pool", func() {
			body := `{
				"target": {"id":"t","county_id":"cook","building_area":40000,"assessed_value":4000000,"zoning_code":"I-2"},
				"candidates": [
					{"id":"a","county_id":"cook","building_area":40000,"assessed_value":4000000,"zoning_code":"I-2"},
					{"id":"b","county_id":"cook","building_area":160000,"assessed_value":1000000,"zoning_code":"R-1"}
				],
				"config": {"min_similarity": 0}
			}`
			rec := do(h, http.MethodPost, "/api/properties/comparables", body)

			Convey("Then the closer candidate ranks first", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got comparablesBody
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(len(got.Comparables), ShouldEqual, 2)
				So(got.Comparables[0].Property.ID, ShouldEqual, "a")
			})
		})

		Convey("When posting malformed JSON", func() {
			rec := do(h, http.MethodPost, "/api/properties/comparables", `{"target":`)

			Convey("Then 400 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				var body errorBody
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When posting without a target", func() {
			rec := do(h, http.MethodPost, "/api/properties/comparables", `{"candidates":[]}`)

			Convey("Then 400 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When searching by county", func() {
			rec := do(h, http.MethodPost, "/api/properties/search", `{"counties":["DALLAS"]}`)

			Convey("Then only matching records are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Properties []model.PropertyRecord `json:"properties"`
					Count      int                    `json:"count"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Count, ShouldEqual, 1)
				So(body.Properties[0].ID, ShouldEqual, "dallas-00")
			})
		})

		Convey("When searching with an inverted range", func() {
			rec := do(h, http.MethodPost, "/api/properties/search", `{"min_building_area":5,"max_building_area":1}`)

			Convey("Then 400 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When listing counties", func() {
			rec := do(h, http.MethodGet, "/api/counties", "")

			Convey("Then the configured counties are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Counties []string `json:"counties"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Counties, ShouldResemble, service.DefaultCounties)
			})
		})

		Convey("When reading data stats", func() {
			rec := do(h, http.MethodGet, "/api/data/stats", "")

			Convey("Then per-county counts are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var st service.DataStats
				So(json.Unmarshal(rec.Body.Bytes(), &st), ShouldBeNil)
				So(st.TotalProperties, ShouldEqual, 8)
				So(st.ByCounty["cook"], ShouldEqual, 7)
				So(st.ByCounty["dallas"], ShouldEqual, 1)
			})
		})
	})
}

func TestJobs(t *testing.T) {
	Convey("Given a started service behind the API", t, func() {
		svc := newTestService()
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		h := newTestRouter(svc)

		Convey("When submitting a job", func() {
			rec := do(h, http.MethodPost, "/api/comparables/jobs", `{"job_id":"job-1","target_id":"cook-target","top_k":2}`)

			Convey("Then it is accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				var ack struct {
					JobID     string `json:"job_id"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.JobID, ShouldEqual, "job-1")
				So(ack.Duplicate, ShouldBeFalse)
			})

			Convey("And resubmitting the same id is a duplicate", func() {
				again := do(h, http.MethodPost, "/api/comparables/jobs", `{"job_id":"job-1","target_id":"cook-target"}`)
				So(again.Code, ShouldEqual, http.StatusOK)
				So(again.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})

			Convey("And the job eventually completes", func() {
				var st service.JobState
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					res := do(h, http.MethodGet, "/api/comparables/jobs/job-1", "")
					So(res.Code, ShouldEqual, http.StatusOK)
					So(json.Unmarshal(res.Body.Bytes(), &st), ShouldBeNil)
					if st.Status == model.JobDone || st.Status == model.JobFailed {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(st.Status, ShouldEqual, model.JobDone)
				So(st.Result, ShouldNotBeNil)
				So(len(st.Result.Comparables), ShouldBeLessThanOrEqualTo, 2)
			})
		})

		Convey("When submitting a job without a target", func() {
			rec := do(h, http.MethodPost, "/api/comparables/jobs", `{"job_id":"job-2"}`)

			Convey("Then 400 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When reading an unknown job", func() {
			rec := do(h, http.MethodGet, "/api/comparables/jobs/missing", "")

			Convey("Then 404 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})

	Convey("Given a service that was never started", t, func() {
		h := newTestRouter(newTestService())

		Convey("When submitting a job", func() {
			rec := do(h, http.MethodPost, "/api/comparables/jobs", `{"target_id":"cook-target"}`)

			Convey("Then 503 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given a server with a one-request burst", t, func() {
		h := newTestRouter(newTestService(), api.WithRateLimit(0.001, 1))

		Convey("When two API requests arrive back to back", func() {
			first := do(h, http.MethodGet, "/api/counties", "")
			second := do(h, http.MethodGet, "/api/counties", "")

			Convey("Then the second is rejected with 429", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Header().Get("Retry-After"), ShouldEqual, "1")
			})

			Convey("And non-API routes are not limited", func() {
				So(do(h, http.MethodGet, "/stats", "").Code, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("Given a request carrying an id", t, func() {
		h := newTestRouter(newTestService())
		req := httptest.NewRequest(http.MethodGet, "/api/counties", nil)
		req.Header.Set(api.RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		Convey("Then the id is echoed back", func() {
			So(rec.Header().Get(api.RequestIDHeader), ShouldEqual, "req-42")
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given an API server", t, func() {
		h := newTestRouter(newTestService())

		Convey("When reading /stats", func() {
			rec := do(h, http.MethodGet, "/stats", "")

			Convey("Then service stats are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var stats map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats, ShouldContainKey, "started")
				So(stats, ShouldContainKey, "uptimeSeconds")
			})
		})

		Convey("When reading /healthz", func() {
			rec := do(h, http.MethodGet, "/healthz", "")

			Convey("Then the metrics registry is exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When reading the API docs", func() {
			rec := do(h, http.MethodGet, "/openapi.yaml", "")

			Convey("Then the document is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "openapi:")
			})
		})
	})
}

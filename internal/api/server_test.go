package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"weir/internal/catalog"
	"weir/internal/job"
	"weir/internal/spec"
	kcfg "weir/source/kafka"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	if err := c.RegisterProvider(catalog.Provider{
		Name:   "local",
		Config: kcfg.Config{Brokers: []string{"localhost:9092"}},
	}); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := c.RegisterTable(catalog.Table{
		Name: "iot", Kind: spec.TableSource, Provider: "local",
		Topic: "iot", Format: "json", EventTimeColumn: "sensor_ts",
	}); err != nil {
		t.Fatalf("RegisterTable: %v", err)
	}
	return c
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Healthz(t *testing.T) {
	r := newRouter(testCatalog(t), nil)
	if rec := get(t, r, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz: want 200, got %d", rec.Code)
	}
}

func TestRouter_ListsCatalog(t *testing.T) {
	r := newRouter(testCatalog(t), []*job.Runner{job.NewRunner("j1", "aggregate", "run-1")})

	rec := get(t, r, "/api/v1/providers")
	if rec.Code != http.StatusOK {
		t.Fatalf("providers: want 200, got %d", rec.Code)
	}
	var provs []providerView
	if err := json.Unmarshal(rec.Body.Bytes(), &provs); err != nil {
		t.Fatalf("unmarshal providers: %v", err)
	}
	if len(provs) != 1 || provs[0].Name != "local" {
		t.Fatalf("unexpected providers: %+v", provs)
	}

	rec = get(t, r, "/api/v1/tables")
	var tables []tableView
	if err := json.Unmarshal(rec.Body.Bytes(), &tables); err != nil {
		t.Fatalf("unmarshal tables: %v", err)
	}
	if len(tables) != 1 || tables[0].Topic != "iot" || tables[0].Kind != "source" {
		t.Fatalf("unexpected tables: %+v", tables)
	}

	rec = get(t, r, "/api/v1/jobs")
	var jobs []job.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("unmarshal jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != "j1" || jobs[0].RunID != "run-1" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestRouter_TableNotFound(t *testing.T) {
	r := newRouter(testCatalog(t), nil)
	if rec := get(t, r, "/api/v1/tables/ghost"); rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

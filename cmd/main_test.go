package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/biasaudit/internal/adapters/repository"
	"github.com/okian/biasaudit/internal/config"
	"github.com/okian/biasaudit/internal/domain/model"
	"github.com/okian/biasaudit/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func TestBuildStore(t *testing.T) {
	convey.Convey("Given a configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When the memory store is selected", func() {
			store, err := buildStore(ctx, cfg)

			convey.Convey("Then a memory store should be returned", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := store.(*repository.MemoryStore)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the sqlite store is selected", func() {
			cfg.Store = config.StoreSQLite
			cfg.SQLitePath = filepath.Join(t.TempDir(), "main.db")
			store, err := buildStore(ctx, cfg)

			convey.Convey("Then a working sqlite store should be returned", func() {
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()
				convey.So(store.Save(ctx, model.Report{ID: "r1", Status: model.StatusPending, CreatedAt: time.Now()}), convey.ShouldBeNil)
				convey.So(store.Count(ctx), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When an unknown store is selected", func() {
			cfg.Store = "etcd"
			_, err := buildStore(ctx, cfg)

			convey.Convey("Then it should fail as invalid config", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestServiceWiring(t *testing.T) {
	convey.Convey("Given a service built from the default configuration", t, func() {
		cfg := config.New()
		cfg.WorkerCount = 2
		cfg.MinSubgroupSize = 1
		svc := newService(cfg, repository.NewMemoryStore(), logger.Nop())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		mux := newMux(ctx, svc, cfg)

		convey.Convey("Then the documented routes should be served", func() {
			for _, path := range []string{"/healthz", "/stats", "/openapi.yaml", "/evaluations"} {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("Then a synchronous evaluation should succeed end to end", func() {
			body := `{"subgroup_fields":["a"],"records":[
				{"label":1,"score":0.9,"subgroups":["a"]},
				{"label":0,"score":0.1,"subgroups":["a"]},
				{"label":1,"score":0.6},
				{"label":0,"score":0.4}]}`
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/evaluations/sync", strings.NewReader(body)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"subgroup":"a"`)
		})

		convey.Convey("Then the HTTP server should carry the configured timeouts", func() {
			srv := newHTTPServer(cfg.Addr, mux)
			convey.So(srv.Addr, convey.ShouldEqual, ":9080")
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, writeTimeout)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metric loops", t, func() {
		convey.Convey("Then the system updater should stop with its context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then a system update should not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then the service updater should stop with its context", func() {
			svc := newService(config.New(), repository.NewMemoryStore(), logger.Nop())
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})
	})
}

package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/biasaudit/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Parallelism, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.MinSubgroupSize, convey.ShouldEqual, 100)
			convey.So(cfg.LabelThreshold, convey.ShouldEqual, 0.5)
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.ReportTTL(), convey.ShouldEqual, time.Duration(0))
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"threshold above one", func(c *config.Config) { c.LabelThreshold = 1.5 }},
			{"negative min size", func(c *config.Config) { c.MinSubgroupSize = -1 }},
			{"negative ttl", func(c *config.Config) { c.ReportTTLSeconds = -1 }},
			{"unknown store", func(c *config.Config) { c.Store = "cassandra" }},
			{"sqlite without path", func(c *config.Config) { c.Store = config.StoreSQLite; c.SQLitePath = "" }},
			{"redis without addr", func(c *config.Config) { c.Store = config.StoreRedis; c.RedisAddr = "" }},
		}

		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				tc.mutate(cfg)

				convey.Convey("Then validation should fail", func() {
					err := cfg.Validate()
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When a TTL is set", func() {
			cfg.ReportTTLSeconds = 90

			convey.Convey("Then ReportTTL should convert it", func() {
				convey.So(cfg.ReportTTL(), convey.ShouldEqual, 90*time.Second)
			})
		})
	})
}

package config_test

import (
	"errors"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/okian/comps/internal/config"
	"github.com/okian/comps/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.CandidatePoolSize, convey.ShouldEqual, 50)
			convey.So(cfg.MinSameCounty, convey.ShouldEqual, 20)
			convey.So(cfg.Weights, convey.ShouldResemble, scoring.DefaultWeights())
			convey.So(cfg.Counties, convey.ShouldResemble, []string{"cook", "dallas", "los_angeles"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then durations are derived from seconds", func() {
			convey.So(cfg.DedupeTTL(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.CacheTTL(), convey.ShouldEqual, 15*time.Minute)
			convey.So(cfg.JobResultTTL(), convey.ShouldEqual, time.Hour)

			cfg.CacheTTLSec = 0
			convey.So(cfg.CacheTTL(), convey.ShouldEqual, time.Duration(0))
		})

		convey.Convey("Then the ranking config mirrors the defaults", func() {
			rc := cfg.Ranking()
			convey.So(rc.TopK, convey.ShouldEqual, 10)
			convey.So(rc.Params.MaxDistanceMiles, convey.ShouldEqual, 50)
			convey.So(rc.Params.SizeHorizon, convey.ShouldAlmostEqual, math.Log(4))
			convey.So(rc.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_SeedOrDSN(t *testing.T) {
	convey.Convey("Given a memory store config with a seed file", t, func() {
		cfg := config.New()
		cfg.SeedFile = "seed.json"

		convey.Convey("Then the seed file is the store source", func() {
			convey.So(cfg.SeedOrDSN(), convey.ShouldEqual, "seed.json")
		})

		convey.Convey("And a sqlite dsn takes precedence", func() {
			cfg.StoreDriver = "sqlite"
			cfg.StoreDSN = "comps.db"
			convey.So(cfg.SeedOrDSN(), convey.ShouldEqual, "comps.db")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the store driver is unknown", func() {
			cfg.StoreDriver = "oracle"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a sql driver has no dsn", func() {
			cfg.StoreDriver = "postgres"

			convey.Convey("Then validation fails", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "store_dsn")
			})
		})

		convey.Convey("When weights do not sum to one", func() {
			cfg.Weights.Size = 0.9

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the same-county floor exceeds the pool size", func() {
			cfg.MinSameCounty = cfg.CandidatePoolSize + 1

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the log format is unknown", func() {
			cfg.LogFormat = "xml"

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})
	})
}

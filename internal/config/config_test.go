package config_test

import (
	"testing"

	"github.com/okian/precinct/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.FeedURL, convey.ShouldEqual, "ws://127.0.0.1:9701/stream")
			convey.So(cfg.TickIntervalMS, convey.ShouldEqual, 250)
			convey.So(cfg.DefaultSpeed, convey.ShouldEqual, 1.0)
			convey.So(cfg.MaxSpeed, convey.ShouldEqual, 64.0)
			convey.So(cfg.CallThresholdPercent, convey.ShouldEqual, 95.0)
			convey.So(cfg.CallSafetyMarginPercent, convey.ShouldEqual, 5.0)
			convey.So(cfg.NewsroomWindow, convey.ShouldEqual, 200)
			convey.So(cfg.PaceNoiseFloorPercent, convey.ShouldEqual, 1.0)
			convey.So(cfg.MaxOverrideRequestKB, convey.ShouldEqual, 64)
		})
	})
}

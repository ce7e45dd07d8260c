package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/creditconsole/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.ProviderBaseURL, convey.ShouldEqual, "http://127.0.0.1:8000")
			convey.So(cfg.ProviderTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.DefaultWindowMonths, convey.ShouldEqual, 12)
			convey.So(cfg.RankingTopN, convey.ShouldEqual, 5)
			convey.So(cfg.Identity().IsAdmin(), convey.ShouldBeTrue)
			convey.So(cfg.Identity().DisplayName(), convey.ShouldEqual, "admin")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":     func(c *config.Config) { c.Addr = " " },
			"empty provider": func(c *config.Config) { c.ProviderBaseURL = "" },
			"zero timeout":   func(c *config.Config) { c.ProviderTimeoutMS = 0 },
			"negative top":   func(c *config.Config) { c.RankingTopN = -1 },
			"empty fake":     func(c *config.Config) { c.FakeProviderMonths = 0 },
		}
		for name, mutate := range cases {
			convey.Convey("Then "+name+" is rejected", func() {
				cfg := config.New(context.Background())
				mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}

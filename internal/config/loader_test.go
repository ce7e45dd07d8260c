package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/creditconsole/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ProviderTimeoutMS, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CONSOLE_ADDR", ":7070")
			_ = os.Setenv("CONSOLE_PROVIDER_BASE_URL", "http://provider.internal")
			_ = os.Setenv("CONSOLE_RANKING_TOP_N", "10")
			_ = os.Setenv("CONSOLE_OPERATOR_NAME", "Ana")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.ProviderBaseURL, convey.ShouldEqual, "http://provider.internal")
				convey.So(cfg.RankingTopN, convey.ShouldEqual, 10)
				convey.So(cfg.Identity().DisplayName(), convey.ShouldEqual, "Ana")
			})
		})

		convey.Convey("When loading config from a YAML file", func() {
			path := writeFile(t, "console.yaml", "addr: \":6060\"\nprovider_timeout_ms: 2500\noperator_role: viewer\n")
			_ = os.Setenv("CONSOLE_CONFIG", path)
			_ = os.Setenv("CONSOLE_ADDR", ":5050")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ProviderTimeoutMS, convey.ShouldEqual, 2500)
				convey.So(cfg.Identity().IsAdmin(), convey.ShouldBeFalse)
				convey.So(cfg.Addr, convey.ShouldEqual, ":5050")
			})
		})

		convey.Convey("When a .env file is given", func() {
			path := writeFile(t, "console.env", "CONSOLE_DEFAULT_WINDOW_MONTHS=24\nCONSOLE_OPERATOR_EMAIL=ops@example.com\n")
			_ = os.Setenv("CONSOLE_DOTENV", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values reach the config", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DefaultWindowMonths, convey.ShouldEqual, 24)
				convey.So(cfg.OperatorEmail, convey.ShouldEqual, "ops@example.com")
			})
		})

		convey.Convey("When the given .env file is missing", func() {
			_ = os.Setenv("CONSOLE_DOTENV", filepath.Join(t.TempDir(), "missing.env"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the YAML file is missing", func() {
			_ = os.Setenv("CONSOLE_CONFIG", "/nonexistent/console.yaml")

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a value fails validation", func() {
			_ = os.Setenv("CONSOLE_PROVIDER_TIMEOUT_MS", "0")

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// clearConfigEnvVars unsets every CONSOLE_ variable, including those a
// .env file merged into the process.
func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, "CONSOLE_") {
			_ = os.Unsetenv(key)
		}
	}
}

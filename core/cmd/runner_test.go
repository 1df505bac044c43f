package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/musicbot/core/config"
	coretelegram "github.com/m3rciful/musicbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct{ opts coretelegram.RunOptions }

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }

func TestRunWiresHooks(t *testing.T) {
	t.Setenv("MUSICBOT_TEST_CONFIG", "config.yaml")

	var order []string
	inner := coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { order = append(order, "start"); return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { order = append(order, "stop"); return nil },
	}
	var loadedPath string
	err := Run(Options{
		ConfigEnvVar: "MUSICBOT_TEST_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app{opts: inner}, nil },
		ShutdownLogger: func() error { order = append(order, "logger"); return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loadedPath != "config.yaml" {
		t.Fatalf("config path = %q", loadedPath)
	}
	want := []string{"start", "stop", "logger"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunPropagatesBootstrapError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
		ShutdownLogger: func() error { return nil },
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestRunRequiresConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return nil, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, nil },
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	if cfg.Worker.Count != 4 || cfg.Worker.PollInterval != time.Second || cfg.Worker.JobTimeout != 300*time.Second {
		t.Errorf("unexpected worker defaults %+v", cfg.Worker)
	}
	if cfg.Generation.Workers != 2 || cfg.Generation.Timeout != 30*time.Second {
		t.Errorf("unexpected generation defaults %+v", cfg.Generation)
	}
	if cfg.Storage.MaxUploadSize != 50<<20 {
		t.Errorf("unexpected max upload size %d", cfg.Storage.MaxUploadSize)
	}
	if cfg.RateLimit.Global != "100 per hour" {
		t.Errorf("unexpected global limit %q", cfg.RateLimit.Global)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("GENERATION_TIMEOUT", "45")
	t.Setenv("BRIDGE_TIMEOUT", "2m")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1, ,127.0.0.1 ")
	t.Setenv("FORCE_HTTPS", "true")
	t.Setenv("WORKER_MAX_QUEUE_DEPTH", "not-a-number")

	cfg := Load()
	if cfg.Worker.Count != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Worker.Count)
	}
	if cfg.Generation.Timeout != 45*time.Second {
		t.Errorf("expected bare seconds to parse, got %v", cfg.Generation.Timeout)
	}
	if cfg.Worker.BridgeTimeout != 2*time.Minute {
		t.Errorf("unexpected bridge timeout %v", cfg.Worker.BridgeTimeout)
	}
	if want := []string{"10.0.0.1", "127.0.0.1"}; !reflect.DeepEqual(cfg.RateLimit.Whitelist, want) {
		t.Errorf("expected %v, got %v", want, cfg.RateLimit.Whitelist)
	}
	if !cfg.Security.ForceHTTPS {
		t.Error("expected FORCE_HTTPS to be honoured")
	}
	if cfg.Worker.MaxQueueDepth != 0 {
		t.Errorf("invalid value should fall back to default, got %d", cfg.Worker.MaxQueueDepth)
	}
}

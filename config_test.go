package mapping

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}
	if cfg.MinArenaSize != 10_000 {
		t.Errorf("MinArenaSize default: %d", cfg.MinArenaSize)
	}
	if cfg.RequestChannelDepth != 100 {
		t.Errorf("RequestChannelDepth default: %d", cfg.RequestChannelDepth)
	}
}

func TestConfigValidateCatchesBadFields(t *testing.T) {
	cfg := &Config{
		DefaultTimeoutSeconds: -1,
		MaxTimeoutSeconds:     -2,
		DefaultMemoryLimitMB:  0,
		MaxMemoryLimitMB:      -1,
		MinArenaSize:          0,
		RequestChannelDepth:   0,
	}
	if errs := cfg.Validate(); len(errs) == 0 {
		t.Error("expected validation errors")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := &Config{DefaultTimeoutSeconds: 5}
	cfg.ApplyDefaults()
	if cfg.DefaultTimeoutSeconds != 5 {
		t.Error("ApplyDefaults overwrote a set field")
	}
	if cfg.RequestChannelDepth != 100 || cfg.MinArenaSize != 10_000 {
		t.Errorf("ApplyDefaults left zeros: %+v", cfg)
	}
}

func TestConfigRequestTimeout(t *testing.T) {
	cfg := DefaultConfig().WithTimeout(10, 20)
	if got := cfg.RequestTimeout(); got != 10*time.Second {
		t.Errorf("RequestTimeout: %v", got)
	}

	capped := DefaultConfig().WithTimeout(500, 20)
	if got := capped.RequestTimeout(); got != 20*time.Second {
		t.Errorf("RequestTimeout cap: %v", got)
	}
}

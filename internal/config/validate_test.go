package config

import (
	"fmt"
	"strings"
	"testing"
)

func validCfg() *Config {
	cfg := Default()
	cfg.SignallerURL = "wss://example.com/ws"
	return cfg
}

func TestValidateTieredMissingSignallerURLIsFatal(t *testing.T) {
	cfg := Default()
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("missing signaller_url should be fatal")
	}
}

func TestValidateTieredInvalidSignallerSchemeIsFatal(t *testing.T) {
	cfg := validCfg()
	cfg.SignallerURL = "https://example.com"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("non-ws signaller_url scheme should be fatal")
	}
}

func TestValidateTieredControlCharsInPasswordIsFatal(t *testing.T) {
	cfg := validCfg()
	cfg.Password = "token\x00with\x01control"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("control chars in password should be fatal")
	}
}

func TestValidateTieredMaxViewersClampingIsWarning(t *testing.T) {
	cfg := validCfg()
	cfg.MaxViewers = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped max_viewers should be warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for clamped max_viewers")
	}
	if cfg.MaxViewers != 1 {
		t.Fatalf("MaxViewers = %d, want 1 (clamped)", cfg.MaxViewers)
	}
}

func TestValidateTieredHighMaxViewersClampingIsWarning(t *testing.T) {
	cfg := validCfg()
	cfg.MaxViewers = 9999
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped max_viewers should be warning, not fatal: %v", result.Fatals)
	}
	if cfg.MaxViewers != 64 {
		t.Fatalf("MaxViewers = %d, want 64 (clamped)", cfg.MaxViewers)
	}
}

func TestValidateTieredKeepAliveClamping(t *testing.T) {
	cfg := validCfg()
	cfg.KeepAliveIntervalSeconds = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped keep_alive_interval_seconds should be warning: %v", result.Fatals)
	}
	if cfg.KeepAliveIntervalSeconds != 5 {
		t.Fatalf("KeepAliveIntervalSeconds = %d, want 5", cfg.KeepAliveIntervalSeconds)
	}
}

func TestValidateTieredEncoderFPSClamping(t *testing.T) {
	cfg := validCfg()
	cfg.Encoder.MaxFPS = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped encoder.max_fps should be warning: %v", result.Fatals)
	}
	if cfg.Encoder.MaxFPS != 1 {
		t.Fatalf("Encoder.MaxFPS = %d, want 1", cfg.Encoder.MaxFPS)
	}
}

func TestValidateTieredUnknownCodecIsWarning(t *testing.T) {
	cfg := validCfg()
	cfg.Encoder.Codec = "bogus_codec"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown codec should not be fatal")
	}
	found := false
	for _, err := range result.Warnings {
		if strings.Contains(err.Error(), "bogus_codec") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected warning about unknown codec")
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := validCfg()
	cfg.Log.Level = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
}

func TestValidateTieredInvalidLogFormatIsWarning(t *testing.T) {
	cfg := validCfg()
	cfg.Log.Format = "xml"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestValidateTieredS3SinkWithoutBucketIsFatal(t *testing.T) {
	cfg := validCfg()
	cfg.Recording.Sink = "s3"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("s3 sink without a bucket should be fatal")
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := validCfg()
	cfg.SignallerURL = "https://bad"          // fatal
	cfg.Encoder.Codec = "fake"                // warning
	result := cfg.ValidateTiered()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
}

func TestValidateTieredMissingURLsIsWarning(t *testing.T) {
	cfg := validCfg()
	cfg.ICEServers = []ICEServer{{}}
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("ice server with no urls should not be fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for ice server with no urls")
	}
}

func TestValidateTieredSkipsURLCheckForDynamicCredentialTypes(t *testing.T) {
	cfg := validCfg()
	cfg.ICEServers = []ICEServer{
		{CredentialType: ICECredentialTwilio},
		{CredentialType: ICECredentialSignaller},
	}
	result := cfg.ValidateTiered()
	if len(result.Warnings) != 0 {
		t.Fatalf("twilio/signaller entries should not need urls yet: %v", result.Warnings)
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := validCfg()
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("valid config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("valid config has warnings: %v", result.Warnings)
	}
}

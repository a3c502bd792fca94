package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHasSaneFallbacks(t *testing.T) {
	cfg := Default()
	if cfg.MaxViewers <= 0 {
		t.Error("default MaxViewers should be positive")
	}
	if len(cfg.ICEServers) == 0 {
		t.Error("default should ship at least one ICE server")
	}
	if cfg.Encoder.Codec == "" || cfg.Encoder.MaxFPS <= 0 {
		t.Error("default encoder settings should be populated")
	}
	if cfg.Recording.Sink != "noop" {
		t.Errorf("default recording sink = %q, want noop", cfg.Recording.Sink)
	}
}

func TestSaveToThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "broadcaster.yaml")

	cfg := Default()
	cfg.SignallerURL = "wss://example.com/ws"
	cfg.Password = "s3cret"
	cfg.MaxViewers = 4

	if err := SaveTo(cfg, cfgPath); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	info, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("saved config mode = %o, want 0600 (it holds the viewer password)", perm)
	}

	loaded, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SignallerURL != cfg.SignallerURL {
		t.Errorf("SignallerURL = %q, want %q", loaded.SignallerURL, cfg.SignallerURL)
	}
	if loaded.Password != cfg.Password {
		t.Errorf("Password = %q, want %q", loaded.Password, cfg.Password)
	}
	if loaded.MaxViewers != cfg.MaxViewers {
		t.Errorf("MaxViewers = %d, want %d", loaded.MaxViewers, cfg.MaxViewers)
	}
}

func TestResolveICEServersFetchesSignallerEntries(t *testing.T) {
	servers := []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{CredentialType: ICECredentialSignaller},
	}
	fetched := []ICEServer{{URLs: []string{"turn:relay.example.com"}, CredentialType: ICECredentialPassword}}

	resolved := ResolveICEServers(context.Background(), servers, func(ctx context.Context) ([]ICEServer, error) {
		return fetched, nil
	})

	if len(resolved) != 2 {
		t.Fatalf("resolved = %+v, want 2 entries", resolved)
	}
	if resolved[1].URLs[0] != "turn:relay.example.com" {
		t.Fatalf("resolved[1] = %+v, want the fetched signaller entry", resolved[1])
	}
}

func TestResolveICEServersDropsSignallerEntryWithoutFetcher(t *testing.T) {
	servers := []ICEServer{{CredentialType: ICECredentialSignaller}}
	resolved := ResolveICEServers(context.Background(), servers, nil)
	if len(resolved) != 0 {
		t.Fatalf("resolved = %+v, want empty without a fetcher", resolved)
	}
}

func TestLoadMissingSignallerURLFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "broadcaster.yaml")

	if err := os.WriteFile(cfgPath, []byte("max_viewers: 2\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(cfgPath); err == nil {
		t.Fatal("Load should fail fatal validation when signaller_url is missing")
	}
}

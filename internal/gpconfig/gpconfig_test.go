package gpconfig

import (
	"encoding/json"
	"testing"
)

func TestResolveKeySetDefault(t *testing.T) {
	cfg := &Config{StaticKeys: KeysConfig{ENC: "404142", MAC: "404142"}}
	keys, kvn, err := cfg.ResolveKeySet("")
	if err != nil {
		t.Fatalf("ResolveKeySet: %v", err)
	}
	if keys.ENC != "404142" || kvn != 0 {
		t.Errorf("resolved = %+v/%d, want static keys/0", keys, kvn)
	}
}

func TestResolveKeySetNamed(t *testing.T) {
	cfg := &Config{
		KeySets: []KeySetConfig{
			{Name: "prod", KVN: 2, Keys: KeysConfig{ENC: "aabbcc"}},
		},
		DefaultKeySet: "prod",
	}
	keys, kvn, err := cfg.ResolveKeySet("")
	if err != nil {
		t.Fatalf("ResolveKeySet: %v", err)
	}
	if keys.ENC != "aabbcc" || kvn != 2 {
		t.Errorf("resolved = %+v/%d, want aabbcc/2", keys, kvn)
	}
}

func TestResolveKeySetNotFound(t *testing.T) {
	cfg := &Config{}
	if _, _, err := cfg.ResolveKeySet("missing"); err == nil {
		t.Fatalf("expected error for missing keyset")
	}
}

func TestUnknownKeysIgnored(t *testing.T) {
	var cfg Config
	if err := json.Unmarshal([]byte(`{"reader":"Gemalto","unknown_field":123}`), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Reader != "Gemalto" {
		t.Errorf("reader = %q, want Gemalto", cfg.Reader)
	}
}

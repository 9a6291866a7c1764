package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	data := []byte(`[physics]
step_duration = 0.05
async_num_threads = 4
lineofsight_cache_expiry = 30
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Physics.StepDuration != 0.05 {
		t.Errorf("step duration = %v, want 0.05", s.Physics.StepDuration)
	}
	if s.Physics.AsyncNumThreads != 4 {
		t.Errorf("threads = %d, want 4", s.Physics.AsyncNumThreads)
	}
	if s.Physics.LOSCacheExpiry != 30 {
		t.Errorf("expiry = %d, want 30", s.Physics.LOSCacheExpiry)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("[physics]\nasync_num_threads = 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Physics.AsyncNumThreads != 8 {
		t.Errorf("threads = %d, want 8", s.Physics.AsyncNumThreads)
	}
	if s.Physics.StepDuration != Default().Physics.StepDuration {
		t.Errorf("unset step duration must stay at the default, got %v", s.Physics.StepDuration)
	}
}

func TestOptions(t *testing.T) {
	s := Settings{Physics: Physics{
		StepDuration:    0.05,
		AsyncNumThreads: 3,
		LOSCacheExpiry:  12,
	}}

	opts := s.Options()
	if opts.StepDuration != 0.05 {
		t.Errorf("step duration = %v, want 0.05", opts.StepDuration)
	}
	if opts.NumThreads != 3 {
		t.Errorf("threads = %d, want 3", opts.NumThreads)
	}
	if opts.LOSCacheExpiry != 12 {
		t.Errorf("expiry = %d, want 12", opts.LOSCacheExpiry)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if s != Default() {
		t.Errorf("missing file must yield defaults, got %+v", s)
	}
}

package config

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateContentStore_Filesystem(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type: "filesystem",
		Filesystem: map[string]any{
			"path": t.TempDir(),
		},
	}

	store, err := CreateContentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create filesystem content store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if store == nil {
		t.Fatal("Expected non-nil store")
	}
}

func TestCreateContentStore_FilesystemMissingPath(t *testing.T) {
	ctx := context.Background()
	cfg := &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{},
	}

	_, err := CreateContentStore(ctx, cfg, nil)
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestCreateContentStore_Memory(t *testing.T) {
	store, err := CreateContentStore(context.Background(), &ContentConfig{
		Type:   "memory",
		Memory: map[string]any{"root": "/binder"},
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create memory content store: %v", err)
	}
	defer func() { _ = store.Close() }()
}

func TestCreateContentStore_S3MissingBucket(t *testing.T) {
	_, err := CreateContentStore(context.Background(), &ContentConfig{
		Type: "s3",
		S3:   map[string]any{"region": "us-east-1"},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "bucket is required") {
		t.Fatalf("Expected 'bucket is required' error, got: %v", err)
	}
}

func TestCreateContentStore_UnknownType(t *testing.T) {
	_, err := CreateContentStore(context.Background(), &ContentConfig{Type: "tape"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown content store type") {
		t.Fatalf("Expected unknown type error, got: %v", err)
	}
}

func TestCreateIndexStore(t *testing.T) {
	tests := []struct {
		name string
		cfg  IndexConfig
	}{
		{
			name: "sqlite",
			cfg: IndexConfig{
				Type:   "sqlite",
				SQLite: map[string]any{"path": filepath.Join(t.TempDir(), "index.db"), "pool_size": 2},
			},
		},
		{
			name: "badger",
			cfg: IndexConfig{
				Type:   "badger",
				Badger: map[string]any{"db_path": filepath.Join(t.TempDir(), "index"), "block_cache_size_mb": 8},
			},
		},
		{
			name: "memory",
			cfg: IndexConfig{
				Type:   "memory",
				Memory: map[string]any{"pool_size": "3", "acquire_timeout": "50ms"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := CreateIndexStore(ctx, &tt.cfg)
			if err != nil {
				t.Fatalf("Failed to create %s index: %v", tt.name, err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Healthcheck(ctx); err != nil {
				t.Errorf("Expected healthy %s index, got: %v", tt.name, err)
			}
		})
	}
}

func TestCreateIndexStore_UnknownType(t *testing.T) {
	_, err := CreateIndexStore(context.Background(), &IndexConfig{Type: "postgres"})
	if err == nil || !strings.Contains(err.Error(), "unknown index type") {
		t.Fatalf("Expected unknown type error, got: %v", err)
	}
}

func TestDecodeOptions_WeakTypes(t *testing.T) {
	var out poolYAMLConfig
	err := decodeOptions(map[string]any{"pool_size": "4", "acquire_timeout": "2s"}, &out)
	if err != nil {
		t.Fatalf("decodeOptions failed: %v", err)
	}
	if out.PoolSize != 4 || out.AcquireTimeout != 2*time.Second {
		t.Errorf("Unexpected decode result: %+v", out)
	}
}

func TestCreatePolicy(t *testing.T) {
	p, err := CreatePolicy(&QuotaConfig{Limit: 5, Unit: "GB"})
	if err != nil {
		t.Fatalf("CreatePolicy failed: %v", err)
	}
	if p.LimitBytes != 5_000_000_000 {
		t.Errorf("Expected 5e9 bytes, got %d", p.LimitBytes)
	}

	if _, err := CreatePolicy(&QuotaConfig{Limit: 5, Unit: "furlongs"}); err == nil {
		t.Error("Expected error for unknown unit")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	m := InitializeMetrics(&Config{})
	if m.Server != nil || m.StorageMetrics != nil || m.HTTPMetrics != nil {
		t.Errorf("Expected no metrics when disabled, got %+v", m)
	}
}

func TestInitializeRuntime_MemoryStores(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Server.PublicAddress = "files.example:8080"
	cfg.Content.Type = "memory"
	cfg.Index.Type = "memory"
	cfg.Quota = QuotaConfig{Limit: 1, Unit: "KB"}

	ctx := context.Background()
	rt, err := InitializeRuntime(ctx, cfg, InitializeMetrics(cfg))
	if err != nil {
		t.Fatalf("InitializeRuntime failed: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if len(rt.Server.Adapters()) != 1 || rt.Server.Adapters()[0].Protocol() != "HTTP" {
		t.Fatalf("Expected a single HTTP adapter, got %d", len(rt.Server.Adapters()))
	}

	if _, err := rt.Coordinator.PutFile(ctx, "a.txt", 3, bytes.NewReader([]byte{1, 2, 3})); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}
	rc, _, err := rt.Coordinator.OpenFile(ctx, "a.txt")
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", got)
	}

	if _, err := rt.Coordinator.PutFile(ctx, "big.bin", 2000, bytes.NewReader(make([]byte, 2000))); err == nil {
		t.Error("Expected the 1 KB limit to reject a 2000 byte upload")
	}

	stats, err := rt.Reconciler.RunNow(ctx)
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if stats.Stale != 0 || stats.Orphaned != 0 {
		t.Errorf("Expected consistent stores, got %s", stats.Summary())
	}
}

func TestInitializeRuntime_ClosesOnFailure(t *testing.T) {
	cfg := validConfig()
	cfg.Content.Type = "memory"
	cfg.Index.Type = "postgres"

	rt, err := InitializeRuntime(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Expected error for unknown index type")
	}
	if rt != nil {
		t.Error("Expected nil runtime on failure")
	}
}

func TestCreateReconciler_MemoryIndexKeepsBlobs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := validConfig()
	cfg.Content = ContentConfig{Type: "filesystem", Filesystem: map[string]any{"path": dir}}
	cfg.Index = IndexConfig{Type: "memory", Memory: map[string]any{"pool_size": 2}}
	cfg.Reconcile.Orphans = "delete"

	cs, err := CreateContentStore(ctx, &cfg.Content, nil)
	if err != nil {
		t.Fatalf("CreateContentStore failed: %v", err)
	}
	defer func() { _ = cs.Close() }()
	is, err := CreateIndexStore(ctx, &cfg.Index)
	if err != nil {
		t.Fatalf("CreateIndexStore failed: %v", err)
	}
	defer func() { _ = is.Close() }()

	// A blob from before the restart, well past any grace period
	blob := filepath.Join(dir, "kept.bin")
	if err := os.WriteFile(blob, []byte("data"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	old := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(blob, old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	r, err := CreateReconciler(cfg, cs, is, nil)
	if err != nil {
		t.Fatalf("CreateReconciler failed: %v", err)
	}
	stats, err := r.RunNow(ctx)
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if stats.Orphaned != 1 || stats.Repaired != 0 {
		t.Errorf("Expected one reported orphan, got %s", stats.Summary())
	}
	if _, err := os.Stat(blob); err != nil {
		t.Errorf("Blob was removed: %v", err)
	}
}

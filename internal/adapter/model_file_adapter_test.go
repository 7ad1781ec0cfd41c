package adapter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pluginproxy.dev/pkg/pluginproxy/internal/codec"
	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

func sampleTree(t *testing.T) (*m.Tree, m.Ref) {
	t.Helper()

	tree := m.NewTree()

	folder := tree.NewInstance(m.ClassFolder, "PluginRoot", tree.Root())
	script := tree.NewInstance(m.ClassScript, "Loader", folder)
	tree.Get(script).SetSource("print(\"loaded\")\n")

	return tree, folder
}

func TestLocalModelFileAdapter_SaveAndLoad(t *testing.T) {
	adapter := NewLocalModelFileAdapter()

	for _, name := range []string{"plugin.rbxm", "plugin.rbxmx"} {
		t.Run(name, func(t *testing.T) {
			tree, folder := sampleTree(t)
			path := filepath.Join(t.TempDir(), name)

			format, err := codec.DetectFormat(path)
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}

			if err := adapter.SaveModel(path, format, tree, []m.Ref{folder}); err != nil {
				t.Fatalf("SaveModel() error = %v", err)
			}

			loaded, loadedFormat, err := adapter.LoadModel(path)
			if err != nil {
				t.Fatalf("LoadModel() error = %v", err)
			}

			if loadedFormat != format {
				t.Fatalf("LoadModel() format = %v, want %v", loadedFormat, format)
			}

			roots := loaded.ChildrenOf(loaded.Root())
			if len(roots) != 1 {
				t.Fatalf("LoadModel() produced %d top-level instances, want 1", len(roots))
			}

			top := loaded.Get(roots[0])
			if top.Name != "PluginRoot" {
				t.Fatalf("LoadModel() root name = %q, want PluginRoot", top.Name)
			}

			children := loaded.ChildrenOf(top.Ref)
			if len(children) != 1 {
				t.Fatalf("LoadModel() produced %d children, want 1", len(children))
			}

			source, ok := loaded.Get(children[0]).Source()
			if !ok || source != "print(\"loaded\")\n" {
				t.Fatalf("LoadModel() script source = %q, ok = %v", source, ok)
			}
		})
	}
}

func TestLocalModelFileAdapter_LoadModel_Missing(t *testing.T) {
	adapter := NewLocalModelFileAdapter()

	if _, _, err := adapter.LoadModel(filepath.Join(t.TempDir(), "missing.rbxm")); err == nil {
		t.Fatalf("LoadModel() expected error for missing file")
	}
}

func TestLocalModelFileAdapter_LoadModel_BadExtension(t *testing.T) {
	adapter := NewLocalModelFileAdapter()

	path := filepath.Join(t.TempDir(), "model.txt")
	if err := os.WriteFile(path, []byte("irrelevant"), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	if _, _, err := adapter.LoadModel(path); err == nil {
		t.Fatalf("LoadModel() expected error for unsupported extension")
	}
}

func TestLocalModelFileAdapter_HashFile(t *testing.T) {
	adapter := NewLocalModelFileAdapter()

	path := filepath.Join(t.TempDir(), "plugin.rbxm")
	content := []byte("stable bytes")

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	expected := fmt.Sprintf("%x", sha256.Sum256(content))

	hash, err := adapter.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}

	if hash != expected {
		t.Fatalf("HashFile() = %s, want %s", hash, expected)
	}
}

func TestLocalModelFileAdapter_WatchFile(t *testing.T) {
	adapter := NewLocalModelFileAdapter()

	path := filepath.Join(t.TempDir(), "plugin.rbxm")
	if err := os.WriteFile(path, []byte("before"), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	done := make(chan error, 1)

	go func() {
		done <- adapter.WatchFile(ctx, path, func() {
			changed <- struct{}{}
		})
	}()

	// Give the watcher a moment to register before mutating the file.
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte("after"), 0o644); err != nil {
		t.Fatalf("failed to rewrite %s: %v", path, err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatalf("WatchFile() did not report the change")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WatchFile() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("WatchFile() did not stop on context cancellation")
	}
}

package adapter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"pluginproxy.dev/pkg/pluginproxy/internal/codec"
	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

// ModelFileAdapter handles document I/O so the domain layer stays free of
// filesystem and container-format concerns.
type ModelFileAdapter interface {
	// LoadModel reads and decodes the document at path. The format is
	// derived from the file extension.
	LoadModel(path string) (*m.Tree, codec.Format, error)

	// SaveModel encodes the root subtrees into the file at path.
	SaveModel(path string, format codec.Format, tree *m.Tree, roots []m.Ref) error

	// HashFile returns the hex sha256 of the file contents.
	HashFile(path string) (string, error)

	// WatchFile blocks and invokes onChange every time the file's content
	// hash changes, until the context is cancelled.
	WatchFile(ctx context.Context, path string, onChange func()) error
}

// LocalModelFileAdapter provides a concrete ModelFileAdapter backed by the
// local filesystem.
type LocalModelFileAdapter struct{}

// NewLocalModelFileAdapter constructs a LocalModelFileAdapter.
func NewLocalModelFileAdapter() *LocalModelFileAdapter {
	return &LocalModelFileAdapter{}
}

// LoadModel reads and decodes the document at path.
func (a *LocalModelFileAdapter) LoadModel(path string) (*m.Tree, codec.Format, error) {
	format, err := codec.DetectFormat(path)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	tree, err := codec.Decode(f, format)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return tree, format, nil
}

// SaveModel encodes the root subtrees into the file at path.
func (a *LocalModelFileAdapter) SaveModel(path string, format codec.Format, tree *m.Tree, roots []m.Ref) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := codec.Encode(f, format, tree, roots); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// HashFile returns the hex sha256 of the file contents.
func (a *LocalModelFileAdapter) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// WatchFile blocks and invokes onChange whenever the watched file's content
// changes. The parent directory is watched rather than the file itself, since
// most editors replace files on save. Events that leave the content hash
// unchanged are ignored.
func (a *LocalModelFileAdapter) WatchFile(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	lastHash, err := a.HashFile(abs)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != abs {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			hash, err := a.HashFile(abs)
			if err != nil {
				// The file may be mid-replace, the next event will catch it.
				continue
			}

			if hash == lastHash {
				continue
			}

			lastHash = hash

			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Warn("file watcher reported an error", "path", path, "error", err)
		}
	}
}

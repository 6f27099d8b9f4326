package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider reads one secret per file from a directory. Values are
// memoized until Refresh; with watching enabled, any change in the
// directory triggers a refresh and the OnChange hook.
type FileProvider struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	values   map[string]string
	onChange func()

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileProvider opens dir. When watch is true the directory is
// monitored until Close.
func NewFileProvider(dir string, watch bool, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", dir)
	}

	p := &FileProvider{
		dir:    dir,
		logger: logger,
		values: make(map[string]string),
		done:   make(chan struct{}),
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch secrets directory: %w", err)
		}
		p.watcher = watcher
		p.wg.Add(1)
		go p.watchLoop()
	}

	logger.Info("file secret provider started", "path", dir, "watch", watch)
	return p, nil
}

// OnChange registers fn to run after a watched change has been applied.
func (p *FileProvider) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// GetSecret reads dir/name. Files must be regular and not readable by
// group or others.
func (p *FileProvider) GetSecret(_ context.Context, name string) (string, error) {
	p.mu.RLock()
	value, ok := p.values[name]
	p.mu.RUnlock()
	if ok {
		return value, nil
	}

	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	path := filepath.Join(p.dir, name)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w in %s: %s", ErrNotFound, p.dir, name)
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", name)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", fmt.Errorf("insecure permissions on %s: %o (expected 0600 or 0400)", path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	value = strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNotFound, path)
	}

	p.mu.Lock()
	p.values[name] = value
	p.mu.Unlock()
	return value, nil
}

// ListSecrets returns the names of regular files in the directory.
func (p *FileProvider) ListSecrets(context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Refresh forgets every memoized value.
func (p *FileProvider) Refresh(context.Context) error {
	p.mu.Lock()
	p.values = make(map[string]string)
	p.mu.Unlock()
	return nil
}

// Close stops watching.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	err := p.watcher.Close()
	p.wg.Wait()
	return err
}

func (p *FileProvider) watchLoop() {
	defer p.wg.Done()
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			p.logger.Debug("secret file changed",
				"file", filepath.Base(event.Name),
				"op", event.Op.String(),
			)
			_ = p.Refresh(context.Background())

			p.mu.RLock()
			fn := p.onChange
			p.mu.RUnlock()
			if fn != nil {
				fn()
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("secret watcher error", "error", err)

		case <-p.done:
			return
		}
	}
}

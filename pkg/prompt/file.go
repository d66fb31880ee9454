package prompt

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kadirpekel/memento/pkg/errs"
)

// FileProvider reads its content from a file and, when watchForChanges is
// set, a background watcher reloads it shortly after the file changes on
// disk; Generate returns the most recently loaded content.
type FileProvider struct {
	id       string
	priority int
	enabled  bool
	path     string
	vars     map[string]string

	mu       sync.RWMutex
	content  string
	watcher  *fsnotify.Watcher
	closed   bool
}

// NewFileProvider creates a FileProvider that loads path immediately. If
// watchForChanges is true, a background watch updates the cached content
// on write/create events so subsequent Generate calls see the change.
func NewFileProvider(id string, priority int, path string, vars map[string]string, watchForChanges bool) (*FileProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, err, "resolve prompt file path").WithComponent("FileProvider")
	}

	p := &FileProvider{id: id, priority: priority, enabled: true, path: absPath, vars: vars}
	if err := p.reload(); err != nil {
		return nil, err
	}

	if watchForChanges {
		if err := p.startWatch(); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *FileProvider) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return errs.Wrap(errs.NotFound, err, "read prompt file").WithComponent("FileProvider")
	}
	p.mu.Lock()
	p.content = string(data)
	p.mu.Unlock()
	return nil
}

func (p *FileProvider) startWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(errs.Internal, err, "create file watcher").WithComponent("FileProvider")
	}

	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return errs.Wrap(errs.Internal, err, "watch prompt file directory").WithComponent("FileProvider")
	}

	p.mu.Lock()
	p.watcher = watcher
	p.mu.Unlock()

	go p.watchLoop(watcher)
	return nil
}

func (p *FileProvider) watchLoop(watcher *fsnotify.Watcher) {
	base := filepath.Base(p.path)
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := p.reload(); err != nil {
					slog.Warn("prompt file reload failed", "path", p.path, "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("prompt file watcher error", "path", p.path, "error", err)
		}
	}
}

func (p *FileProvider) ID() string        { return p.id }
func (p *FileProvider) Priority() int     { return p.priority }
func (p *FileProvider) Enabled() bool     { return p.enabled }
func (p *FileProvider) SetEnabled(v bool) { p.enabled = v }

func (p *FileProvider) Generate(ctx context.Context, pctx Context) (string, error) {
	p.mu.RLock()
	content := p.content
	p.mu.RUnlock()
	return substituteVariables(content, p.vars, pctx), nil
}

// Close stops the background watch, if any.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

var _ Provider = (*FileProvider)(nil)

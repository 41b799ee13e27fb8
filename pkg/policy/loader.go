package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/rs/zerolog"
)

// Header directives recognised in the leading comment block of a .rego file.
const (
	directiveSeverity = "severity:"
	directiveTags     = "tags:"
)

// Loader reads guard-rail policies from .rego and .json files.
//
// A .rego file is one policy named after the file. Its leading comment block
// becomes the description, except for "severity: <level>" and
// "tags: a, b" lines which set those fields. A .json file holds one
// serialized Policy.
type Loader struct {
	logger   zerolog.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:   logger.With().Str("component", "policy-loader").Logger(),
		debounce: 500 * time.Millisecond,
	}
}

// SetDebounce sets how long Watch waits for changes to settle before reloading.
func (l *Loader) SetDebounce(d time.Duration) {
	l.debounce = d
}

// LoadFromPaths loads every policy below paths. Any unreadable or invalid
// file fails the whole load so that a broken guard rail is never skipped.
// Policies are returned sorted by name; duplicate names are an error.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var files []string
	for _, path := range paths {
		found, err := policyFiles(path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	policies := make([]Policy, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := l.LoadFile(file)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("policy %q defined by both %s and %s", p.Name, prev, file)
		}
		seen[p.Name] = file
		policies = append(policies, *p)
	}

	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })

	l.logger.Debug().
		Int("policies", len(policies)).
		Strs("paths", paths).
		Msg("Policies read")

	return policies, nil
}

// LoadFile reads a single .rego or .json policy file.
func (l *Loader) LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}

	var p *Policy
	switch filepath.Ext(path) {
	case ".rego":
		p, err = parseRegoPolicy(path, string(data))
	case ".json":
		p, err = parseJSONPolicy(path, data)
	default:
		return nil, fmt.Errorf("unsupported policy file %s: want .rego or .json", path)
	}
	if err != nil {
		return nil, err
	}

	if p.Metadata == nil {
		p.Metadata = make(map[string]interface{})
	}
	p.Metadata["source"] = path
	return p, nil
}

// policyFiles lists the policy files at path, which may be a file or a
// directory walked recursively. Order is lexical.
func policyFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isPolicyFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}
	return files, nil
}

func isPolicyFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".rego" || ext == ".json"
}

func parseRegoPolicy(path, source string) (*Policy, error) {
	if _, err := ast.ParseModule(path, source); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}

	header := parseHeader(source)
	now := time.Now()
	return &Policy{
		Name:        strings.TrimSuffix(filepath.Base(path), ".rego"),
		Description: header.description,
		Rego:        source,
		Severity:    header.severity,
		Enabled:     true,
		Tags:        header.tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func parseJSONPolicy(path string, data []byte) (*Policy, error) {
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("invalid policy %s: name is required", path)
	}
	if _, err := ast.ParseModule(path, p.Rego); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", path, err)
	}
	if p.Severity == "" {
		p.Severity = SeverityError
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return &p, nil
}

type regoHeader struct {
	description string
	severity    Severity
	tags        []string
}

// parseHeader reads the comment block before the first statement.
func parseHeader(source string) regoHeader {
	h := regoHeader{severity: SeverityError}
	var desc []string

	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(desc) > 0 {
				break
			}
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}

		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		lower := strings.ToLower(comment)
		switch {
		case comment == "":
		case strings.HasPrefix(lower, directiveSeverity):
			h.severity = Severity(strings.TrimSpace(comment[len(directiveSeverity):]))
		case strings.HasPrefix(lower, directiveTags):
			for _, tag := range strings.Split(comment[len(directiveTags):], ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					h.tags = append(h.tags, tag)
				}
			}
		default:
			desc = append(desc, comment)
		}
	}

	h.description = strings.Join(desc, " ")
	return h
}

// Watch reloads the policies under paths whenever a .rego or .json file
// below them changes, calling reloadFn with the complete new set. A failed
// load is logged and reloadFn is not called. Watching stops with ctx or
// StopWatching.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, path := range paths {
		if err := addWatchDirs(watcher, path); err != nil {
			watcher.Close()
			return err
		}
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go l.watchLoop(ctx, watcher, paths, reloadFn)

	l.logger.Info().Strs("paths", paths).Msg("Watching policy paths")
	return nil
}

// addWatchDirs watches path, or every directory below it.
func addWatchDirs(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat policy path: %w", err)
	}
	if !info.IsDir() {
		return watcher.Add(path)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				return fmt.Errorf("failed to watch %s: %w", p, err)
			}
		}
		return nil
	})
}

func (l *Loader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, paths []string, reloadFn func([]Policy) error) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		watcher.Close()
	}()

	reload := func() {
		policies, err := l.LoadFromPaths(ctx, paths)
		if err != nil {
			l.logger.Error().Err(err).Msg("Policy reload failed; keeping current policies")
			return
		}
		if err := reloadFn(policies); err != nil {
			l.logger.Error().Err(err).Msg("Policy reload rejected; keeping current policies")
			return
		}
		l.logger.Info().Int("count", len(policies)).Msg("Policies reloaded")
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// New subdirectories join the watch set.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addWatchDirs(watcher, event.Name); err != nil {
						l.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
					}
					continue
				}
			}
			if !isPolicyFile(event.Name) {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Policy file changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(l.debounce, reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}

// StopWatching stops a running Watch.
func (l *Loader) StopWatching() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}

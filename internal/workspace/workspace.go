// Package workspace owns the per-job working directories on disk.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var ErrInvalidName = errors.New("invalid name")

// Manager creates job directories under a base dir and removes them again.
// All methods are safe for concurrent use.
type Manager struct {
	baseDir string

	mu     sync.Mutex
	active map[string]time.Time

	// removeFile deletes one entry during Release; replaced in tests.
	removeFile func(string) error
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:    baseDir,
		active:     make(map[string]time.Time),
		removeFile: os.Remove,
	}
}

func (m *Manager) BaseDir() string { return m.baseDir }

// Path returns the job's directory without creating it.
func (m *Manager) Path(jobID string) (string, error) {
	if !validName(jobID) {
		return "", fmt.Errorf("job id %q: %w", jobID, ErrInvalidName)
	}
	return filepath.Join(m.baseDir, jobID), nil
}

// Acquire returns the job's directory, creating it on first use.
func (m *Manager) Acquire(jobID string) (string, error) {
	dir, err := m.Path(jobID)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}
	if _, ok := m.active[jobID]; !ok {
		m.active[jobID] = time.Now()
	}
	return dir, nil
}

// File resolves a basename inside the job's directory. Anything that is not a
// plain basename is rejected.
func (m *Manager) File(jobID, name string) (string, error) {
	dir, err := m.Path(jobID)
	if err != nil {
		return "", err
	}
	if !validName(name) {
		return "", fmt.Errorf("file %q: %w", name, ErrInvalidName)
	}
	return filepath.Join(dir, name), nil
}

// Release deletes the job's directory. It is idempotent, and failures on
// individual files do not stop the directory from being removed.
func (m *Manager) Release(jobID string) error {
	dir, err := m.Path(jobID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.active, jobID)
	m.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: [job %s] list workdir: %v", jobID, err)
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := m.removeFile(p); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: [job %s] remove %s: %v", jobID, e.Name(), err)
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove workdir %s: %w", dir, err)
	}
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("workdir %s still present after release", dir)
	}
	log.Printf("[job %s] workdir released", jobID)
	return nil
}

// Active returns the number of directories acquired and not yet released by this process.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Sweep removes job directories whose last modification is older than maxAge.
// Directories held by this process are skipped.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read workspace: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !validName(e.Name()) {
			continue
		}
		m.mu.Lock()
		_, held := m.active[e.Name()]
		m.mu.Unlock()
		if held {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := m.Release(e.Name()); err != nil {
			log.Printf("Warning: sweep %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

// RunSweeper sweeps once immediately and then every interval until ctx is
// done. A non-positive interval sweeps only once.
func (m *Manager) RunSweeper(ctx context.Context, interval, maxAge time.Duration) error {
	sweep := func() {
		n, err := m.Sweep(maxAge)
		if err != nil {
			log.Printf("Warning: workspace sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Info: workspace sweep removed %d stale directories", n)
		}
	}

	sweep()
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sweep()
		}
	}
}

func validName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && filepath.Base(s) == s
}

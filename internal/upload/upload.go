// Package upload syncs a directory of YAML mesocycle templates to a Mesoplan
// server. Files are validated locally, sent once per content hash, and can be
// re-sent automatically when they change.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/meltforce/mesoplan/internal/expand"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal        int
	FilesUploaded     int
	FilesSkipped      int
	FilesRejected     int
	FilesErrored      int
	SetsCreated       int
	TemplatesReplaced int // earlier uploads of edited files, archived
}

// Uploader walks a template directory and POSTs new or changed templates to
// the server.
type Uploader struct {
	client   *Client
	state    *StateDB
	dir      string
	dryRun   bool
	days     int
	debounce time.Duration
	log      *slog.Logger
	stats    Stats
}

// New creates a new Uploader. daysPerMicrocycle must match the server's
// setting so local validation agrees with it.
func New(client *Client, state *StateDB, dir string, dryRun bool, daysPerMicrocycle int, log *slog.Logger) *Uploader {
	return &Uploader{
		client:   client,
		state:    state,
		dir:      dir,
		dryRun:   dryRun,
		days:     daysPerMicrocycle,
		debounce: 500 * time.Millisecond,
		log:      log,
	}
}

// IsTemplateFile reports whether path names a YAML template.
func IsTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Run uploads every template under the directory once.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	files, err := u.templateFiles()
	if err != nil {
		return &u.stats, err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &u.stats, err
		}
		if err := u.processFile(ctx, f); err != nil {
			return &u.stats, err
		}
	}
	return &u.stats, nil
}

func (u *Uploader) templateFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(u.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsTemplateFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", u.dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// processFile uploads one template unless the same content was already sent.
// Only context cancellation is returned as an error; per-file failures are
// logged and counted.
func (u *Uploader) processFile(ctx context.Context, path string) error {
	u.stats.FilesTotal++

	relPath, _ := filepath.Rel(u.dir, path)
	data, err := os.ReadFile(path)
	if err != nil {
		u.log.Warn("read failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return nil
	}
	hash, err := HashFile(path)
	if err != nil {
		u.log.Warn("hash failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return nil
	}
	size := int64(len(data))

	uploaded, err := u.state.IsUploaded(relPath, size, hash)
	if err != nil {
		u.log.Warn("state check failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return nil
	}
	if uploaded {
		u.stats.FilesSkipped++
		return nil
	}

	// Validate locally before spending a round trip.
	t, err := expand.DecodeYAML(bytes.NewReader(data))
	if err == nil {
		err = expand.Validate(*t, u.days)
	}
	if err != nil {
		u.log.Warn("template invalid", "file", relPath, "error", err)
		u.stats.FilesRejected++
		return nil
	}

	if u.dryRun {
		u.log.Info("dry-run: would upload", "file", relPath, "name", t.Name, "microcycles", t.MicrocycleCount)
		return nil
	}

	m, err := u.client.CreateTemplate(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			u.log.Warn("template rejected by server", "file", relPath, "error", err)
			u.stats.FilesRejected++
			return nil
		}
		u.log.Error("upload failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return nil
	}

	prev, hadPrev, err := u.state.MesocycleFor(relPath)
	if err != nil {
		u.log.Warn("state lookup failed", "file", relPath, "error", err)
	}
	if err := u.state.MarkUploaded(relPath, size, hash, m.ID); err != nil {
		u.log.Warn("failed to mark uploaded", "file", relPath, "error", err)
	}
	if hadPrev && prev != m.ID {
		if err := u.client.Archive(ctx, prev); err != nil {
			u.log.Warn("archiving replaced template failed", "file", relPath, "mesocycle", prev, "error", err)
		} else {
			u.stats.TemplatesReplaced++
			u.log.Info("archived replaced template", "file", relPath, "mesocycle", prev)
		}
	}
	u.stats.FilesUploaded++
	u.stats.SetsCreated += m.SetCount()
	u.log.Info("uploaded template",
		"file", relPath,
		"mesocycle", m.ID,
		"name", m.Name,
		"sets", m.SetCount(),
	)
	return nil
}

// Watch runs an initial upload, then re-uploads templates as they are created
// or modified until ctx is cancelled. Bursts of events for one file (editors
// often write several times per save) are collapsed.
func (u *Uploader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	err = filepath.WalkDir(u.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", u.dir, err)
	}

	if _, err := u.Run(ctx); err != nil {
		return err
	}
	u.log.Info("watching for template changes", "dir", u.dir)

	pending := map[string]bool{}
	timer := time.NewTimer(u.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.Add(event.Name); err != nil {
						u.log.Warn("watching new directory failed", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) || !IsTemplateFile(event.Name) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(u.debounce)
		case <-timer.C:
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			clear(pending)
			sort.Strings(files)
			for _, f := range files {
				if err := u.processFile(ctx, f); err != nil {
					return nil
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			u.log.Warn("watcher error", "error", err)
		}
	}
}

// Stats returns the counters accumulated so far.
func (u *Uploader) Stats() Stats {
	return u.stats
}

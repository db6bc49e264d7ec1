// Copyright (C) 2025 Safe-T AI (contact@safe-t-ai.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package loader

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce batches rapid file events before one invalidation.
const defaultDebounce = 100 * time.Millisecond

// Cache serves parsed input tables and invalidates them when the backing
// files change.
//
// Description:
//
//	Dataset loads lazily and is shared until a write, create, remove, or
//	rename lands on either backing file. Events are debounced so an editor
//	writing in chunks invalidates once. Watching is optional; without
//	Start the cache is just a lazy loader with manual Invalidate.
//
// Thread Safety: safe for concurrent use.
type Cache struct {
	tractsPath   string
	countersPath string
	logger       *slog.Logger
	debounce     time.Duration

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex
	ds *Dataset
}

// NewCache builds a cache over a tracts table and an optional counters
// table. A nil logger falls back to slog.Default.
func NewCache(tractsPath, countersPath string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		tractsPath:   tractsPath,
		countersPath: countersPath,
		logger:       logger,
		debounce:     defaultDebounce,
		done:         make(chan struct{}),
	}
}

// Dataset returns the cached tables, loading them on first use or after an
// invalidation.
func (c *Cache) Dataset() (*Dataset, error) {
	c.mu.RLock()
	ds := c.ds
	c.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ds != nil {
		return c.ds, nil
	}

	tracts, err := LoadTracts(c.tractsPath)
	if err != nil {
		return nil, err
	}
	loaded := &Dataset{Tracts: tracts, LoadedAt: tableTimestamp(c.tractsPath)}
	if c.countersPath != "" {
		loaded.Counters, err = LoadCounters(c.countersPath)
		if err != nil {
			return nil, err
		}
	}
	c.ds = loaded
	return loaded, nil
}

// Invalidate drops the cached tables; the next Dataset call reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.ds = nil
	c.mu.Unlock()
}

// Start begins watching the backing files' directories.
//
// Inputs:
//   - ctx: Cancellation context; watching stops when it ends.
//
// Outputs:
//   - error - Non-nil when the watcher cannot be created or a directory
//     cannot be added.
func (c *Cache) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.watcher = watcher

	// Watch directories, not files: rewrites that replace the file keep
	// working because the directory entry survives.
	dirs := map[string]bool{filepath.Dir(c.tractsPath): true}
	if c.countersPath != "" {
		dirs[filepath.Dir(c.countersPath)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	go c.watchLoop(ctx)
	return nil
}

// Stop ends watching. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.watcher != nil {
			c.watcher.Close()
		}
	})
}

// watchLoop debounces relevant events into a single invalidation.
func (c *Cache) watchLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if !c.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(c.debounce)
				timerC = timer.C
			} else {
				timer.Reset(c.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			c.Invalidate()
			c.logger.Info("dataset cache invalidated",
				slog.String("tracts", c.tractsPath),
				slog.String("counters", c.countersPath),
			)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("dataset watcher error", slog.String("error", err.Error()))
		}
	}
}

// relevant reports whether an event touches one of the backing files.
func (c *Cache) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == filepath.Clean(c.tractsPath) ||
		(c.countersPath != "" && name == filepath.Clean(c.countersPath))
}

// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watch reloads the catalogue whenever the file at path changes. It blocks
// until ctx is cancelled, so run it in its own goroutine. Reload failures
// keep the previous catalogue.
func (m *Matcher) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("intent: failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops a
	// direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("intent: failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	var debounce *time.Timer
	debounceCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Coalesce bursts of write events into one reload.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case debounceCh <- struct{}{}:
				default:
				}
			})
		case <-debounceCh:
			if err := m.LoadFile(path); err != nil {
				log.Warnf("intent catalogue reload failed, keeping previous: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("intent catalogue watcher error: %v", err)
		}
	}
}

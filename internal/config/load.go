package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/eventhost/internal/ctxlog"
	"github.com/vk/eventhost/internal/fsutil"
)

// Load walks paths, hands every file with a known extension to the loader
// that claims it, and merges the results over Default in discovery order.
// Missing paths are skipped.
func Load(ctx context.Context, loaders []Loader, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	byExt := make(map[string]Loader)
	for _, l := range loaders {
		for _, ext := range l.Extensions() {
			byExt[ext] = l
		}
	}

	files, err := findConfigFiles(paths, byExt)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered config files.", "count", len(files))

	model := Default()
	for _, file := range files {
		part, err := byExt[filepath.Ext(file)].LoadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		model.Merge(part)
	}

	logger.Debug("Config loading complete.",
		"bridges", len(model.Bridges),
		"scripts", len(model.Scripts),
		"subscriptions", len(model.Subscriptions),
	)
	return model, nil
}

// findConfigFiles expands directories and drops duplicates. Files named
// explicitly are kept even when no loader claims them, so the caller gets
// a clear error instead of silence.
func findConfigFiles(paths []string, byExt map[string]Loader) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if _, ok := byExt[filepath.Ext(path)]; !ok {
				return nil, fmt.Errorf("unsupported config file %s: no loader for extension %q", path, filepath.Ext(path))
			}
			add(path)
			continue
		}

		exts := make([]string, 0, len(byExt))
		for ext := range byExt {
			exts = append(exts, ext)
		}
		if len(exts) == 0 {
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, exts...)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			add(p)
		}
	}
	return all, nil
}

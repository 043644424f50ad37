// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package scanner walks a mission's remote tree to find batches whose
// required subfolders are all present.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/satready/internal/catalog"
	"github.com/cardinalhq/satready/internal/logctx"
	"github.com/cardinalhq/satready/internal/remote"
)

type Scanner struct {
	dialer remote.Dialer
}

func New(dialer remote.Dialer) *Scanner {
	return &Scanner{dialer: dialer}
}

// Scan is one mission's session on its remote host. It must be closed by
// the caller once the mission check is finished.
type Scan struct {
	mission catalog.Mission
	sess    remote.Session
}

// Open dials the mission's endpoint.
func (s *Scanner) Open(ctx context.Context, m catalog.Mission) (*Scan, error) {
	sess, err := s.dialer.Dial(ctx, m.Endpoint)
	if err != nil {
		return nil, err
	}
	return &Scan{mission: m, sess: sess}, nil
}

func (sc *Scan) Close() error {
	return sc.sess.Close()
}

func (sc *Scan) Mission() catalog.Mission {
	return sc.mission
}

// ListRoot returns the names of the directories directly under the
// mission root.
func (sc *Scan) ListRoot(ctx context.Context) ([]string, error) {
	return sc.dirNames(ctx, sc.mission.Root())
}

// FilterBatchTags keeps the names that are exactly twelve decimal digits,
// preserving order.
func FilterBatchTags(names []string) []string {
	var tags []string
	for _, name := range names {
		if remote.IsBatchTag(name) {
			tags = append(tags, name)
		}
	}
	return tags
}

// CheckCompleteness reports whether the batch directory contains every
// required subfolder. Extra subfolders are ignored.
func (sc *Scan) CheckCompleteness(ctx context.Context, tag string) (bool, error) {
	names, err := sc.dirNames(ctx, sc.mission.BatchPath(tag))
	if err != nil {
		return false, err
	}
	return Complete(mapset.NewSet(names...), sc.mission.RequiredFolders), nil
}

// Complete reports whether observed is a superset of required.
func Complete(observed, required mapset.Set[string]) bool {
	return observed.Contains(required.ToSlice()...)
}

// ReadyBatches lists the root, filters batch tags and returns the complete
// ones in listing order. Any listing failure aborts the mission.
func (sc *Scan) ReadyBatches(ctx context.Context) ([]string, error) {
	logger := logctx.FromContext(ctx)

	names, err := sc.ListRoot(ctx)
	if err != nil {
		return nil, err
	}
	tags := FilterBatchTags(names)
	logger.Debug("Found batch candidates", slog.Int("candidates", len(tags)), slog.Int("entries", len(names)))

	var ready []string
	for _, tag := range tags {
		ok, err := sc.CheckCompleteness(ctx, tag)
		if err != nil {
			return nil, err
		}
		if !ok {
			logger.Debug("Batch incomplete", slog.String("date", tag))
			continue
		}
		ready = append(ready, tag)
	}
	return ready, nil
}

// ListFiles returns every file under dir, recursing into directories. A
// directory that cannot be listed is logged and contributes nothing.
func (sc *Scan) ListFiles(ctx context.Context, dir string) []string {
	entries, err := sc.sess.List(ctx, dir)
	if err != nil {
		logctx.FromContext(ctx).Warn("Cannot list directory, skipping",
			slog.String("dir", dir), slog.Any("error", err))
		return nil
	}
	var files []string
	for _, e := range entries {
		full := path.Join(dir, e.Name)
		if e.IsDir() {
			files = append(files, sc.ListFiles(ctx, full)...)
			continue
		}
		files = append(files, full)
	}
	return files
}

func (sc *Scan) dirNames(ctx context.Context, dir string) ([]string, error) {
	entries, err := sc.sess.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// Download copies files from the mission host into destDir, keeping each
// file's remote path below destDir. It stops at the first failure.
func (s *Scanner) Download(ctx context.Context, m catalog.Mission, files []string, destDir string) error {
	logger := logctx.FromContext(ctx)

	sess, err := s.dialer.Dial(ctx, m.Endpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Failed to close session", slog.Any("error", err))
		}
	}()

	for _, f := range files {
		local, err := LocalPath(destDir, f)
		if err != nil {
			return err
		}
		if err := retrieve(ctx, sess, f, local); err != nil {
			return err
		}
		logger.Debug("Downloaded file", slog.String("remote", f), slog.String("local", local))
	}
	return nil
}

// LocalPath maps a remote path to a location under destDir. Paths that
// would escape destDir are rejected.
func LocalPath(destDir, remotePath string) (string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+remotePath), "/")
	if rel == "" {
		return "", fmt.Errorf("empty remote path %q", remotePath)
	}
	return filepath.Join(destDir, filepath.FromSlash(rel)), nil
}

func retrieve(ctx context.Context, sess remote.Session, remotePath, local string) (err error) {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", local, err)
	}
	f, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("create %s: %w", local, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", local, cerr)
		}
		if err != nil {
			_ = os.Remove(local)
		}
	}()
	return sess.Retrieve(ctx, remotePath, f)
}

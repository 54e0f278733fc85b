// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/trace-agent/lib/clock"
	"github.com/bureau-foundation/trace-agent/lib/codec"
	"github.com/bureau-foundation/trace-agent/lib/trace"
)

// fingerprintSize is how much of the file head identifies it in a
// checkpoint.
const fingerprintSize = 1024

const readChunkSize = 64 * 1024

// FileTailConfig configures a FileTail.
type FileTailConfig struct {
	// Path is the log file to follow.
	Path string

	// Delimiter and Field locate the trace JSON within each line; see
	// trace.DecodeEnvelope.
	Delimiter string
	Field     int

	// StartAt is "end" (skip existing content) or "beginning". It
	// applies only when no usable checkpoint exists.
	StartAt string

	// CheckpointPath, if set, persists the read position across
	// restarts.
	CheckpointPath string

	// PollInterval is the fallback read period when no change
	// notification arrives.
	PollInterval time.Duration

	MaxLineBytes int

	// Clock drives the poll ticker. Nil means the real clock.
	Clock clock.Clock
}

// checkpoint is the persisted read position. The fingerprint is a
// BLAKE3 hash of the file's first FingerprintLength bytes, so a
// checkpoint taken on a file that has since been replaced is ignored.
type checkpoint struct {
	Offset            int64  `cbor:"offset"`
	Fingerprint       []byte `cbor:"fingerprint"`
	FingerprintLength int64  `cbor:"fingerprint_length"`
}

// FileTail follows a log file and offers each decoded line to a
// Sink. It survives rotation (the path now names a different file)
// and truncation (the file shrank below the read position) by
// reopening from the start.
type FileTail struct {
	config FileTailConfig
	sink   Sink
	logger *slog.Logger
	clock  clock.Clock

	dropped   atomic.Uint64
	malformed atomic.Uint64

	file     *os.File
	fileInfo os.FileInfo
	started  bool

	// offset counts bytes read from file. pending holds a trailing
	// partial line; skipping is set while discarding the rest of an
	// oversized line.
	offset   int64
	pending  []byte
	skipping bool

	savedOffset int64
	savedFile   os.FileInfo
}

// NewFileTail validates config. Nothing is opened until Serve.
func NewFileTail(config FileTailConfig, sink Sink, logger *slog.Logger) (*FileTail, error) {
	if config.Path == "" {
		return nil, errors.New("ingest: file tail requires a path")
	}
	if config.Field < 0 {
		return nil, fmt.Errorf("ingest: field index %d is negative", config.Field)
	}
	if config.MaxLineBytes <= 0 {
		return nil, fmt.Errorf("ingest: MaxLineBytes must be positive, got %d", config.MaxLineBytes)
	}
	switch config.StartAt {
	case "":
		config.StartAt = "end"
	case "end", "beginning":
	default:
		return nil, fmt.Errorf("ingest: unknown start position %q", config.StartAt)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &FileTail{
		config: config,
		sink:   sink,
		logger: logger,
		clock:  clk,
	}, nil
}

// Dropped returns the number of records the sink rejected.
func (t *FileTail) Dropped() uint64 { return t.dropped.Load() }

// Malformed returns the number of lines that failed to decode.
func (t *FileTail) Malformed() uint64 { return t.malformed.Load() }

// Serve follows the file until ctx is cancelled. A missing file is
// waited for. The checkpoint, if configured, is written after every
// read and once more on exit.
func (t *FileTail) Serve(ctx context.Context) error {
	defer t.closeFile()

	wake, stopWatch, err := watchFile(t.config.Path)
	if err != nil {
		t.logger.Warn("file change notification unavailable, polling only",
			"path", t.config.Path,
			"error", err,
		)
		wake, stopWatch = nil, func() {}
	}
	defer stopWatch()

	t.logger.Info("following trace log",
		"path", t.config.Path,
		"start_at", t.config.StartAt,
		"checkpoint", t.config.CheckpointPath,
	)

	// The first open happens before the ticker exists so a caller
	// that observes the ticker knows the start position is fixed.
	waiting := false
	t.step(&waiting)

	ticker := t.clock.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.saveCheckpoint()
			return nil
		case <-ticker.C:
		case <-wake:
		}
		t.step(&waiting)
	}
}

// step opens the file if needed and reads whatever is new.
func (t *FileTail) step(waiting *bool) {
	if t.file == nil {
		if err := t.open(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// A file that appears later is read from its start.
				t.started = true
				if !*waiting {
					t.logger.Info("waiting for trace log to appear", "path", t.config.Path)
					*waiting = true
				}
				return
			}
			t.logger.Warn("opening trace log failed", "path", t.config.Path, "error", err)
			return
		}
		*waiting = false
	}
	t.poll()
	t.saveCheckpoint()
}

// open opens the path. The first successful open starts at the
// checkpoint or StartAt; every later open (after rotation) starts at
// zero.
func (t *FileTail) open() error {
	file, err := os.Open(t.config.Path)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat %s: %w", t.config.Path, err)
	}

	var start int64
	if !t.started {
		start = t.initialOffset(file, info.Size())
		t.started = true
	}
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		file.Close()
		return fmt.Errorf("seeking %s to %d: %w", t.config.Path, start, err)
	}

	t.file, t.fileInfo = file, info
	t.offset, t.pending, t.skipping = start, nil, false
	t.logger.Debug("trace log opened", "path", t.config.Path, "offset", start, "size", info.Size())
	return nil
}

func (t *FileTail) initialOffset(file *os.File, size int64) int64 {
	if offset, ok := t.loadCheckpoint(file, size); ok {
		t.logger.Info("resuming trace log from checkpoint", "path", t.config.Path, "offset", offset)
		t.savedOffset, t.savedFile = offset, nil
		return offset
	}
	if t.config.StartAt == "beginning" {
		return 0
	}
	return size
}

func (t *FileTail) closeFile() {
	if t.file != nil {
		t.file.Close()
		t.file, t.fileInfo = nil, nil
	}
}

// poll reads to EOF, then checks whether the path was rotated or
// truncated and, if so, starts over on the current file.
func (t *FileTail) poll() {
	t.readAvailable()

	info, err := os.Stat(t.config.Path)
	if err != nil {
		// Renamed away and not yet recreated; keep the old handle.
		return
	}
	switch {
	case !os.SameFile(info, t.fileInfo):
		t.logger.Info("trace log rotated, reopening", "path", t.config.Path)
		t.discardPending()
		t.closeFile()
		if err := t.open(); err != nil {
			t.logger.Warn("reopening rotated trace log failed", "path", t.config.Path, "error", err)
			return
		}
		t.readAvailable()
	case info.Size() < t.offset:
		t.logger.Info("trace log truncated, reading from start",
			"path", t.config.Path,
			"size", info.Size(),
			"offset", t.offset,
		)
		t.discardPending()
		if _, err := t.file.Seek(0, io.SeekStart); err != nil {
			t.logger.Warn("seeking truncated trace log failed", "path", t.config.Path, "error", err)
			t.closeFile()
			return
		}
		t.offset, t.fileInfo = 0, info
		t.readAvailable()
	}
}

func (t *FileTail) readAvailable() {
	buffer := make([]byte, readChunkSize)
	for {
		n, err := t.file.Read(buffer)
		if n > 0 {
			t.offset += int64(n)
			t.consume(buffer[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Warn("reading trace log failed", "path", t.config.Path, "error", err)
			}
			return
		}
	}
}

// consume splits chunk into lines, carrying a trailing partial line
// in pending until its newline arrives.
func (t *FileTail) consume(chunk []byte) {
	for len(chunk) > 0 {
		newline := bytes.IndexByte(chunk, '\n')
		if newline < 0 {
			if !t.skipping {
				t.pending = append(t.pending, chunk...)
				if len(t.pending) > t.config.MaxLineBytes {
					t.logger.Error("trace line exceeds limit, skipping",
						"path", t.config.Path,
						"max_line_bytes", t.config.MaxLineBytes,
					)
					t.pending, t.skipping = nil, true
				}
			}
			return
		}

		if t.skipping {
			t.skipping = false
		} else {
			line := chunk[:newline]
			if len(t.pending) > 0 {
				line = append(t.pending, line...)
				t.pending = nil
			}
			if len(line) > t.config.MaxLineBytes {
				t.logger.Error("trace line exceeds limit, skipping",
					"path", t.config.Path,
					"max_line_bytes", t.config.MaxLineBytes,
				)
			} else {
				offerLine(line, t.config.Path, t.decode, t.sink, &t.dropped, &t.malformed, t.logger)
			}
		}
		chunk = chunk[newline+1:]
	}
}

func (t *FileTail) decode(line []byte) (trace.Record, error) {
	return trace.DecodeEnvelope(line, t.config.Delimiter, t.config.Field)
}

func (t *FileTail) discardPending() {
	if len(t.pending) > 0 {
		t.logger.Debug("discarding incomplete final line", "path", t.config.Path, "bytes", len(t.pending))
	}
	t.pending, t.skipping = nil, false
}

// committed is the offset just past the last complete line.
func (t *FileTail) committed() int64 {
	return t.offset - int64(len(t.pending))
}

func (t *FileTail) loadCheckpoint(file *os.File, size int64) (int64, bool) {
	if t.config.CheckpointPath == "" {
		return 0, false
	}
	data, err := os.ReadFile(t.config.CheckpointPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("reading checkpoint failed", "path", t.config.CheckpointPath, "error", err)
		}
		return 0, false
	}
	var saved checkpoint
	if err := codec.Unmarshal(data, &saved); err != nil {
		t.logger.Warn("ignoring corrupt checkpoint", "path", t.config.CheckpointPath, "error", err)
		return 0, false
	}
	if saved.Offset < 0 || saved.FingerprintLength < 0 {
		t.logger.Warn("ignoring corrupt checkpoint", "path", t.config.CheckpointPath,
			"offset", saved.Offset,
			"fingerprint_length", saved.FingerprintLength,
		)
		return 0, false
	}
	if saved.Offset > size || saved.FingerprintLength > size {
		t.logger.Info("checkpoint is past the end of the trace log, ignoring", "offset", saved.Offset, "size", size)
		return 0, false
	}
	current, err := fingerprint(file, saved.FingerprintLength)
	if err != nil {
		t.logger.Warn("fingerprinting trace log failed", "path", t.config.Path, "error", err)
		return 0, false
	}
	if !bytes.Equal(current, saved.Fingerprint) {
		t.logger.Info("checkpoint belongs to a different file, ignoring", "path", t.config.Path)
		return 0, false
	}
	return saved.Offset, true
}

// saveCheckpoint writes the committed offset if it moved. The file is
// replaced atomically by rename.
func (t *FileTail) saveCheckpoint() {
	if t.config.CheckpointPath == "" || t.file == nil {
		return
	}
	offset := t.committed()
	if offset == t.savedOffset && t.savedFile != nil && os.SameFile(t.savedFile, t.fileInfo) {
		return
	}

	length := min(int64(fingerprintSize), offset)
	sum, err := fingerprint(t.file, length)
	if err != nil {
		t.logger.Warn("fingerprinting trace log failed", "path", t.config.Path, "error", err)
		return
	}
	data, err := codec.Marshal(checkpoint{Offset: offset, Fingerprint: sum, FingerprintLength: length})
	if err != nil {
		t.logger.Warn("encoding checkpoint failed", "error", err)
		return
	}

	temporary := t.config.CheckpointPath + ".tmp"
	if err := os.WriteFile(temporary, data, 0o600); err != nil {
		t.logger.Warn("writing checkpoint failed", "path", temporary, "error", err)
		return
	}
	if err := os.Rename(temporary, t.config.CheckpointPath); err != nil {
		t.logger.Warn("replacing checkpoint failed", "path", t.config.CheckpointPath, "error", err)
		return
	}
	t.savedOffset, t.savedFile = offset, t.fileInfo
}

// fingerprint hashes the first length bytes of file without moving
// its read position.
func fingerprint(file *os.File, length int64) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("negative fingerprint length %d", length)
	}
	head := make([]byte, length)
	if _, err := file.ReadAt(head, 0); err != nil {
		return nil, fmt.Errorf("reading %d bytes of %s: %w", length, filepath.Base(file.Name()), err)
	}
	sum := blake3.Sum256(head)
	return sum[:], nil
}

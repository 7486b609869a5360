// Package archive keeps a compressed copy of every payload a batch lands,
// keyed by run and source file, on local disk or in S3.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"studiopipe/internal/common"
	"studiopipe/pkg/errors"
	"studiopipe/pkg/models"
)

// Extension is appended to the source-file name of every archived object.
const Extension = ".sz"

// Sink stores archived objects.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
	Location(key string) string
}

// Archiver writes batch payloads for one run to a sink.
type Archiver struct {
	sink  Sink
	runID string
}

// New builds an archiver from config. It returns nil when archiving is
// disabled, and nil archivers accept Store as a no-op.
func New(ctx context.Context, cfg models.Archive, runID string) (*Archiver, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	var sinks []Sink
	if cfg.Dir != "" {
		local, err := NewLocalSink(cfg.Dir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, local)
	}
	if cfg.S3Bucket != "" {
		s3Sink, err := NewS3Sink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3Sink)
	}

	if len(sinks) == 1 {
		return NewArchiver(sinks[0], runID), nil
	}
	return NewArchiver(MultiSink(sinks), runID), nil
}

// NewArchiver wraps a sink for one run.
func NewArchiver(sink Sink, runID string) *Archiver {
	return &Archiver{sink: sink, runID: runID}
}

// Key returns the object key for a source file within a run.
func Key(runID, sourceFile string) string {
	return path.Join(runID, sourceFile+Extension)
}

// Store encodes payloads and writes them under the run. It returns the
// location written, or "" for a nil archiver.
func (a *Archiver) Store(ctx context.Context, sourceFile string, payloads [][]byte) (string, error) {
	if a == nil {
		return "", nil
	}

	key := Key(a.runID, sourceFile)
	data, err := Encode(payloads)
	if err != nil {
		return "", err
	}
	if err := a.sink.Put(ctx, key, data); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeArchiveFailed, "Failed to archive batch payloads").
			WithContext("key", key)
	}
	return a.sink.Location(key), nil
}

// Encode joins JSON payloads as NDJSON and snappy-compresses the result.
func Encode(payloads [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	for i, p := range payloads {
		if bytes.ContainsRune(p, '\n') {
			return nil, errors.New(errors.ErrCodeArchiveFailed, "Payload contains a newline").
				WithContext("index", i)
		}
		buf.Write(p)
		buf.WriteByte('\n')
	}
	return snappy.Encode(nil, buf.Bytes()), nil
}

// Decode reverses Encode.
func Decode(data []byte) ([][]byte, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArchiveFailed, "Archive is not snappy encoded")
	}

	var payloads [][]byte
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), len(raw)+1)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		payloads = append(payloads, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArchiveFailed, "Failed to split archived payloads")
	}
	return payloads, nil
}

// DecodeFile reads and decodes an archive file from disk.
func DecodeFile(file string) ([][]byte, error) {
	data, err := os.ReadFile(file) // #nosec G304 -- operator-supplied archive path
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArchiveFailed, "Failed to read archive").
			WithContext("file", file)
	}
	return Decode(data)
}

// LocalSink writes objects below a directory.
type LocalSink struct {
	dir string
}

// NewLocalSink creates the base directory if needed.
func NewLocalSink(dir string) (*LocalSink, error) {
	cleaned, err := common.CleanPath(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid archive directory").
			WithContext("dir", dir)
	}
	if err := os.MkdirAll(cleaned, common.DirPermissionNormal); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArchiveFailed, "Failed to create archive directory").
			WithContext("dir", cleaned)
	}
	return &LocalSink{dir: cleaned}, nil
}

// Put writes data to dir/key.
func (l *LocalSink) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest, err := common.JoinPath(l.dir, filepath.FromSlash(key))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), common.DirPermissionNormal); err != nil {
		return err
	}
	return os.WriteFile(dest, data, common.FilePermissionNormal)
}

// Location returns the file path for key.
func (l *LocalSink) Location(key string) string {
	return filepath.Join(l.dir, filepath.FromSlash(key))
}

type multiSink []Sink

// MultiSink writes every object to each sink in turn.
func MultiSink(sinks []Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Put(ctx context.Context, key string, data []byte) error {
	for _, s := range m {
		if err := s.Put(ctx, key, data); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) Location(key string) string {
	locations := make([]string, 0, len(m))
	for _, s := range m {
		locations = append(locations, s.Location(key))
	}
	return strings.Join(locations, ", ")
}

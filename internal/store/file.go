package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/samber/lo"
)

const (
	Prefix        = "openai-image"
	metadataExt   = ".json"
	sentinelName  = ".write-probe"
	suffixLength  = 6
	timestampForm = "2006-01-02T15:04:05.000Z"
)

var (
	suffixCharset = append(append([]rune{}, lo.LowerCaseLettersCharset...), lo.NumbersCharset...)
	artifactName  = regexp.MustCompile(`^` + Prefix + `-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z-[a-z0-9]{6}\.(png|jpg|webp)$`)
	knownExts     = []string{"png", "jpg", "webp"}
)

// Extension maps an output format to the file extension used on disk.
func Extension(format string) string {
	return lo.Ternary(format == "jpeg", "jpg", format)
}

// IsArtifact reports whether name follows the store's naming convention.
func IsArtifact(name string) bool {
	return artifactName.MatchString(name)
}

// FileStore keeps generated images in one directory. It only ever touches
// files whose names it generated.
type FileStore struct {
	dir    string
	now    func() time.Time
	remove func(string) error
}

func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fault.Wrap(fault.DirectoryInaccessible, err, "create output directory %s", abs)
	}
	return &FileStore{dir: abs, now: time.Now, remove: os.Remove}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) filename(format string) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(s.now().UTC().Format(timestampForm))
	return fmt.Sprintf("%s-%s-%s.%s", Prefix, ts, lo.RandomString(suffixLength, suffixCharset), Extension(format))
}

// Write decodes payload and stores it under a fresh name. The metadata
// sidecar is best effort.
func (s *FileStore) Write(ctx context.Context, payload, format string, meta Metadata) (string, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("store").With("dir", s.dir)

	if !lo.Contains(knownExts, Extension(format)) {
		return "", fault.New(fault.UnsupportedFormat, "format %q is not supported", format)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fault.Wrap(fault.InvalidPayload, err, "image payload is not valid base64")
	}
	if len(data) == 0 {
		return "", fault.New(fault.InvalidPayload, "image payload is empty")
	}

	name := s.filename(format)
	path := filepath.Join(s.dir, name)
	logger.Info("writing", "file", name, "bytes", len(data))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		if rmErr := s.remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("removing partial file", "file", name, "error", rmErr)
		}
		return "", fault.Wrap(fault.WriteFailed, err, "write %s", name)
	}

	meta.Filename = name
	meta.Format = format
	meta.Bytes = len(data)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now().UTC()
	}
	if err := s.writeMetadata(path, meta); err != nil {
		logger.Warn("writing metadata", "file", name, "error", err)
	}
	return path, nil
}

func (s *FileStore) writeMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path+metadataExt, data, 0o644)
}

// ReadMetadata reads the sidecar of the artifact at path.
func (s *FileStore) ReadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path + metadataExt)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata for %s: %w", filepath.Base(path), err)
	}
	return meta, nil
}

func (s *FileStore) EnsureAccessible() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fault.Wrap(fault.DirectoryInaccessible, err, "output directory %s is not accessible", s.dir)
	}
	if !info.IsDir() {
		return fault.New(fault.DirectoryInaccessible, "output path %s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) CheckWritable() bool {
	probe := filepath.Join(s.dir, sentinelName)
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false
	}
	return os.Remove(probe) == nil
}

// List returns artifact paths newest first. The timestamp leads each name,
// so a descending lexical sort is chronological.
func (s *FileStore) List(ctx context.Context) []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.FromContextOrDiscard(ctx).WithGroup("store").Warn("listing output directory", "dir", s.dir, "error", err)
		return []string{}
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), e.Type().IsRegular() && IsArtifact(e.Name())
	})
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	return lo.Map(names, func(name string, _ int) string {
		return filepath.Join(s.dir, name)
	})
}

func (s *FileStore) Latest(ctx context.Context) (string, bool) {
	artifacts := s.List(ctx)
	if len(artifacts) == 0 {
		return "", false
	}
	return artifacts[0], true
}

// Prune deletes every artifact older than the newest keep. Failures are
// logged and skipped. A keep of zero or less disables retention.
func (s *FileStore) Prune(ctx context.Context, keep int) int {
	if keep <= 0 {
		return 0
	}
	logger := log.FromContextOrDiscard(ctx).WithGroup("store").With("dir", s.dir, "keep", keep)

	artifacts := s.List(ctx)
	if len(artifacts) <= keep {
		return 0
	}

	deleted := 0
	for _, path := range artifacts[keep:] {
		if err := s.remove(path); err != nil {
			logger.Warn("pruning artifact", "file", filepath.Base(path), "error", err)
			continue
		}
		deleted++
		if err := s.remove(path + metadataExt); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("pruning metadata", "file", filepath.Base(path), "error", err)
		}
	}
	logger.Info("pruned artifacts", "deleted", deleted)
	return deleted
}

package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/natefinch/atomic"
	"github.com/samber/lo"
)

const (
	KeyPrefix = "sk-"

	DefaultModel   = "gpt-4o"
	DefaultSize    = "1024x1024"
	DefaultQuality = "auto"
	DefaultFormat  = "png"
)

// SupportedModels are the preference models a user may select. They are
// unrelated to the fixed upstream image model.
var SupportedModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano", "o3", "o4-mini"}

type Record struct {
	APIKey         string     `json:"apiKey,omitempty"`
	Organization   string     `json:"organization,omitempty"`
	Model          string     `json:"model"`
	DefaultSize    string     `json:"defaultSize"`
	DefaultQuality string     `json:"defaultQuality"`
	DefaultFormat  string     `json:"defaultFormat"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (r Record) Configured() bool {
	return r.APIKey != ""
}

type Status struct {
	Configured   bool
	HasAPIKey    bool
	Model        string
	Organization string
	LastUsedAt   *time.Time
}

type Credentials struct {
	APIKey       string
	Organization string
}

type Option func(*Store)

func WithRequireOrganization(require bool) Option {
	return func(s *Store) { s.requireOrg = require }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the credential record persisted at a single path. All
// read-modify-write sequences hold mu, so concurrent tool calls cannot lose
// each other's updates.
type Store struct {
	path       string
	requireOrg bool
	now        func() time.Time
	readFile   func(string) ([]byte, error)

	mu     sync.Mutex
	cached *Record
}

func New(path string, opts ...Option) *Store {
	s := &Store{
		path:     path,
		now:      time.Now,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(ctx context.Context) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Reset drops the cached record so the next Load reads the file again.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}

func (s *Store) Save(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, record)
}

func ValidKey(key string) bool {
	return key != "" && strings.HasPrefix(key, KeyPrefix)
}

func (s *Store) UpdateKey(ctx context.Context, apiKey, organization string) error {
	if !ValidKey(apiKey) {
		return fault.New(fault.InvalidCredential, "API key must be a non-empty string starting with %q", KeyPrefix)
	}
	organization = strings.TrimSpace(organization)
	if s.requireOrg && organization == "" {
		return fault.New(fault.InvalidCredential, "an organization ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.load(ctx)
	record.APIKey = apiKey
	record.Organization = organization
	return s.save(ctx, record)
}

func (s *Store) UpdateModel(ctx context.Context, model string) error {
	if !lo.Contains(SupportedModels, model) {
		return fault.New(fault.UnsupportedModel, "model %q is not supported, use one of: %s",
			model, strings.Join(SupportedModels, ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.load(ctx)
	record.Model = model
	return s.save(ctx, record)
}

func (s *Store) TouchLastUsed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.load(ctx)
	now := s.now().UTC()
	record.LastUsedAt = &now
	return s.save(ctx, record)
}

func (s *Store) Status(ctx context.Context) Status {
	record := s.Load(ctx)
	return Status{
		Configured:   record.Configured(),
		HasAPIKey:    record.Configured(),
		Model:        record.Model,
		Organization: record.Organization,
		LastUsedAt:   record.LastUsedAt,
	}
}

// Credentials returns what the upstream client needs to authenticate, and
// false while no key is configured.
func (s *Store) Credentials(ctx context.Context) (Credentials, bool) {
	record := s.Load(ctx)
	return Credentials{APIKey: record.APIKey, Organization: record.Organization}, record.Configured()
}

func (s *Store) load(ctx context.Context) Record {
	if s.cached != nil {
		return *s.cached
	}

	logger := log.FromContextOrDiscard(ctx).WithGroup("credential").With("path", s.path)

	record, err := s.read()
	if err == nil {
		s.cached = &record
		return record
	}

	logger.Warn("credential file unreadable, creating defaults", "error", err)
	record = s.defaults()
	if err := s.write(ctx, record, nil); err != nil {
		logger.Error("persisting default credentials", "error", err)
		s.cached = &record
	}
	return *s.cached
}

func (s *Store) read() (Record, error) {
	data, err := s.readFile(s.path)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if record.Model == "" || record.CreatedAt.IsZero() {
		return Record{}, fmt.Errorf("decode %s: incomplete record", s.path)
	}
	return record, nil
}

func (s *Store) defaults() Record {
	now := s.now().UTC()
	return Record{
		Model:          DefaultModel,
		DefaultSize:    DefaultSize,
		DefaultQuality: DefaultQuality,
		DefaultFormat:  DefaultFormat,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// save compares against the cached record, or the persisted one after a
// Reset, so updatedAt never repeats.
func (s *Store) save(ctx context.Context, record Record) error {
	prev := s.cached
	if prev == nil {
		if persisted, err := s.read(); err == nil {
			prev = &persisted
		}
	}
	return s.write(ctx, record, prev)
}

func (s *Store) write(ctx context.Context, record Record, prev *Record) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("credential").With("path", s.path)

	now := s.now().UTC()
	if prev != nil {
		record.CreatedAt = prev.CreatedAt
		if !now.After(prev.UpdatedAt) {
			now = prev.UpdatedAt.Add(time.Millisecond)
		}
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fault.Wrap(fault.ConfigSaveFailed, err, "encode credentials")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fault.Wrap(fault.ConfigSaveFailed, err, "create credential directory")
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fault.Wrap(fault.ConfigSaveFailed, err, "write credential file")
	}

	logger.Debug("saved credentials", "configured", record.Configured(), "model", record.Model)
	s.cached = &record
	return nil
}

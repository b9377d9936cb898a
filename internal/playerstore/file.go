package playerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// fileBanner is the on-disk shape of one banner's progress.
type fileBanner struct {
	Pulls                  int            `yaml:"Pulls"`
	PityMap                map[string]int `yaml:"Pity-Map,omitempty"`
	LimitedBannerGuarantee *bool          `yaml:"LimitedBannerGuarantee,omitempty"`
}

// FileStore keeps every player in one YAML document keyed
// <player>.<banner>. The document is read once at open and rewritten
// atomically on each save.
type FileStore struct {
	path string
	log  *zap.Logger

	mu      sync.Mutex
	records map[uuid.UUID]Record
}

// OpenFile loads the document at path. A missing file starts empty.
// Entries that do not parse are logged and skipped.
func OpenFile(path string, log *zap.Logger) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &FileStore{path: path, log: log, records: make(map[uuid.UUID]Record)}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read players: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse players: %w", err)
	}
	for key, v := range doc {
		player, err := uuid.Parse(key)
		if err != nil {
			log.Warn("skipping player with malformed uuid", zap.String("key", key))
			continue
		}
		flat := make(map[string]string)
		flattenTree("", v, flat)
		rec, skipped := Unflatten(player, flat)
		if len(skipped) > 0 {
			log.Warn("skipping malformed player fields",
				zap.Stringer("player", player), zap.Strings("keys", skipped))
		}
		s.records[player] = rec
	}
	return s, nil
}

// flattenTree turns decoded YAML into dotted keys.
func flattenTree(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			flattenTree(join(prefix, k), child, out)
		}
	case nil:
	default:
		out[prefix] = fmt.Sprint(t)
	}
}

func join(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}

func (s *FileStore) Load(ctx context.Context, player uuid.UUID) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[player]
	return rec, ok, nil
}

func (s *FileStore) Save(ctx context.Context, recs []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.records[rec.Player] = rec
	}

	doc := make(map[string]map[string]fileBanner, len(s.records))
	for player, rec := range s.records {
		banners := make(map[string]fileBanner, len(rec.Banners))
		for id, br := range rec.Banners {
			banners[id.String()] = fileBanner{
				Pulls:                  br.Pulls,
				PityMap:                br.PityMap,
				LimitedBannerGuarantee: br.LimitedBannerGuarantee,
			}
		}
		doc[player.String()] = banners
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	return writeAtomic(s.path, buf.Bytes())
}

func (s *FileStore) Close() error { return nil }

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

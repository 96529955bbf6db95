// Package baseline persists the last published snapshot so a restarted
// process can diff against it instead of starting cold.
package baseline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"

	"ghostwatch/internal/blob"
	"ghostwatch/pkg/domain"
)

// Prefix is the key namespace of baseline artifacts.
const Prefix = "baseline/"

// Logger is the logging surface used by the store.
type Logger interface {
	Debugf(string, ...interface{})
	Warningf(string, ...interface{})
}

// Store saves and loads snapshot artifacts in a blob store. Keys embed the
// zero-padded capture time so lexical order is chronological.
type Store struct {
	blobs  blob.Store
	logger Logger
}

// New returns a Store writing to blobs.
func New(blobs blob.Store, logger Logger) *Store {
	return &Store{blobs: blobs, logger: logger}
}

// Key returns the artifact key for a capture time.
func Key(capturedAt time.Time) string {
	return fmt.Sprintf("%s%020d.json", Prefix, capturedAt.UnixNano())
}

// Save writes snap as the newest artifact and prunes older ones. Saving a
// snapshot whose artifact already exists is a no-op.
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return errors.NotValidf("nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Annotate(err, "encode baseline")
	}
	key := Key(snap.CapturedAt())
	_, err = s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"captured-at": snap.CapturedAt().Format(time.RFC3339Nano)},
	})
	switch {
	case errors.Is(err, blob.ErrExists):
		s.logger.Debugf("baseline %s already stored", key)
	case err != nil:
		return errors.Annotatef(err, "write baseline %s", key)
	}
	return s.prune(ctx, key)
}

// prune deletes every artifact older than keep.
func (s *Store) prune(ctx context.Context, keep string) error {
	infos, err := s.blobs.List(ctx, Prefix)
	if err != nil {
		return errors.Annotate(err, "list baselines")
	}
	for _, info := range infos {
		if info.Key >= keep || !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		if _, err := s.blobs.Delete(ctx, info.Key); err != nil {
			return errors.Annotatef(err, "delete stale baseline %s", info.Key)
		}
		s.logger.Debugf("pruned baseline %s", info.Key)
	}
	return nil
}

// Load returns the newest stored snapshot, or (nil, nil) when none exists.
// The snapshot is decoded but not validated.
func (s *Store) Load(ctx context.Context) (*domain.Snapshot, error) {
	infos, err := s.blobs.List(ctx, Prefix)
	if err != nil {
		return nil, errors.Annotate(err, "list baselines")
	}
	var newest string
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") && info.Key > newest {
			newest = info.Key
		}
	}
	if newest == "" {
		return nil, nil
	}
	_, rc, err := s.blobs.Get(ctx, newest)
	if err != nil {
		return nil, errors.Annotatef(err, "read baseline %s", newest)
	}
	defer func() { _ = rc.Close() }()
	var snap domain.Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return nil, errors.Annotatef(err, "decode baseline %s", newest)
	}
	return &snap, nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"scriptgen/internal/domain"
	"scriptgen/internal/infra"
)

var (
	bucketSession = []byte("generation_session")
	keyCurrent    = []byte("current")
)

// BoltStore persists the session slot in a bbolt database so it survives
// process crashes and restarts.
type BoltStore struct {
	db     *bolt.DB
	ttl    time.Duration
	logger *infra.Logger
}

// NewBoltStore opens (creating if necessary) the database at path. The TTL
// bounds how long a stored session is considered live.
func NewBoltStore(path string, ttl time.Duration, logger *infra.Logger) (*BoltStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("session: db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &BoltStore{db: db, ttl: ttl, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Persist(ctx context.Context, sess domain.GenerationSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keyCurrent, raw)
	})
}

func (s *BoltStore) Load(ctx context.Context) (*domain.GenerationSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSession).Get(keyCurrent); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var sess domain.GenerationSession
	if err := json.Unmarshal(raw, &sess); err != nil || sess.JobID == "" || sess.StartTime.IsZero() {
		s.logger.Warn().Err(err).Msg("session: discarding corrupt session record")
		return nil, s.Clear(ctx)
	}
	if sess.Expired(time.Now(), s.ttl) {
		s.logger.Debug().Str("job_id", sess.JobID).Msg("session: discarding expired session record")
		return nil, s.Clear(ctx)
	}
	return &sess, nil
}

func (s *BoltStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(keyCurrent)
	})
}

// Package badgerstore persists the metadata store in an embedded BadgerDB.
// Values are JSON documents under prefixed keys:
//
//	task/<taskSetID>\x00<taskID>   TaskMetadata
//	points/<path>\x00<taskID>      PointsRecord
//	state/login|courses|download   scalar state
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/metrics"
	"github.com/tide-ide/tide/pkg/models"
)

const sep = "\x00"

var (
	prefixTask   = []byte("task/")
	prefixPoints = []byte("points/")

	keyLogin    = []byte("state/login")
	keyCourses  = []byte("state/courses")
	keyDownload = []byte("state/download")
)

// Config holds configuration for the Badger store.
type Config struct {
	// Path is the database directory; ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCInterval of 0 disables value log GC.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultConfig returns production settings for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, a ...interface{})   { l.s.Errorf(f, a...) }
func (l badgerLogger) Warningf(f string, a ...interface{}) { l.s.Warnf(f, a...) }
func (l badgerLogger) Infof(f string, a ...interface{})    { l.s.Debugf(f, a...) }
func (l badgerLogger) Debugf(f string, a ...interface{})   { l.s.Debugf(f, a...) }

// Store is a BadgerDB-backed metadata store.
type Store struct {
	db *badger.DB

	stopGC chan struct{}
	gcDone chan struct{}
	once   sync.Once
}

// Open opens (or creates) the database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger store: path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{s: logging.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn("badger value log GC failed", zap.Error(err))
			}
		}
	}
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		if s.stopGC != nil {
			close(s.stopGC)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

func observe(op string, start time.Time) {
	metrics.RecordStoreOp("badger", op, time.Since(start))
}

func taskKey(taskSetID, taskID string) []byte {
	return append(append([]byte{}, prefixTask...), taskSetID+sep+taskID...)
}

func pointsKey(path, taskID string) []byte {
	return append(append([]byte{}, prefixPoints...), path+sep+taskID...)
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// getJSON decodes key into v. Missing keys report false.
func getJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func (s *Store) PutTaskMetadata(_ context.Context, meta models.TaskMetadata) error {
	defer observe("put_task", time.Now())
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, taskKey(meta.TaskSetID, meta.TaskID), meta)
	})
}

func (s *Store) TaskMetadata(_ context.Context, taskSetID, taskID string) (models.TaskMetadata, bool, error) {
	defer observe("get_task", time.Now())
	var meta models.TaskMetadata
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, taskKey(taskSetID, taskID), &meta)
		return err
	})
	return meta, found, err
}

func (s *Store) ListTaskMetadata(_ context.Context) ([]models.TaskMetadata, error) {
	defer observe("list_tasks", time.Now())
	var out []models.TaskMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefixTask); it.ValidForPrefix(prefixTask); it.Next() {
			var meta models.TaskMetadata
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
			out = append(out, meta)
		}
		return nil
	})
	return out, err
}

func (s *Store) PutPoints(_ context.Context, path, taskID string, rec models.PointsRecord) error {
	defer observe("put_points", time.Now())
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, pointsKey(path, taskID), rec)
	})
}

func (s *Store) Points(_ context.Context, path, taskID string) (models.PointsRecord, bool, error) {
	defer observe("get_points", time.Now())
	var rec models.PointsRecord
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, pointsKey(path, taskID), &rec)
		return err
	})
	return rec, found, err
}

func (s *Store) getState(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		_, err := getJSON(txn, key, v)
		return err
	})
}

func (s *Store) setState(key []byte, v any) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, v)
	})
}

func (s *Store) LoginData(context.Context) (models.LoginData, error) {
	var data models.LoginData
	err := s.getState(keyLogin, &data)
	return data, err
}

func (s *Store) SetLoginData(_ context.Context, data models.LoginData) error {
	return s.setState(keyLogin, data)
}

func (s *Store) Courses(context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := s.getState(keyCourses, &courses)
	return courses, err
}

func (s *Store) SetCourses(_ context.Context, courses []models.Course) error {
	return s.setState(keyCourses, courses)
}

func (s *Store) DownloadPath(context.Context) (string, error) {
	var p string
	err := s.getState(keyDownload, &p)
	return p, err
}

func (s *Store) SetDownloadPath(_ context.Context, path string) error {
	return s.setState(keyDownload, path)
}

func (s *Store) ClearSession(context.Context) error {
	defer observe("clear_session", time.Now())
	if err := s.db.DropPrefix(prefixPoints); err != nil {
		return fmt.Errorf("drop points: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range [][]byte{keyLogin, keyCourses} {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

package streaming

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hupe1980/flowmesh/logging"
)

// BadgerStreamManagerOptions configures the BadgerDB-backed manager.
type BadgerStreamManagerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	// Useful for testing with a real badger engine.
	InMemory bool

	// TTL is applied to every persisted event, so a whole stream expires
	// together once it goes quiet. Zero means no expiry.
	TTL time.Duration

	// Logger receives manager and badger logs. Defaults to NoOpLogger.
	Logger logging.Logger
}

// BadgerStreamManager persists every appended event write-through to
// BadgerDB while serving live runs from in-memory buffers. A finished
// stream's buffer is released; later lookups reconstruct it from the DB, so
// replay survives process restarts.
type BadgerStreamManager struct {
	db     *badger.DB
	ttl    time.Duration
	logger logging.Logger

	mu   sync.RWMutex
	live map[string]*badgerStream

	closeOnce sync.Once
	closeErr  error
}

// NewBadgerStreamManager opens (or creates) the backing database.
func NewBadgerStreamManager(opts BadgerStreamManagerOptions) (*BadgerStreamManager, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("streaming: BadgerStreamManagerOptions.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogAdapter{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("streaming: open badger: %w", err)
	}

	return &BadgerStreamManager{
		db:     db,
		ttl:    opts.TTL,
		logger: logger,
		live:   make(map[string]*badgerStream),
	}, nil
}

// Create allocates a fresh stream id with a live buffer and write-through
// persistence.
func (m *BadgerStreamManager) Create(_ context.Context) (string, Stream, error) {
	s := &badgerStream{
		id:  uuid.NewString(),
		buf: NewBuffer(),
		mgr: m,
	}

	m.mu.Lock()
	m.live[s.id] = s
	m.mu.Unlock()

	m.logger.Debug("durable stream created", "stream_id", s.id)
	return s.id, s, nil
}

// Lookup returns the live stream for an active run, or reconstructs a
// closed stream from the database. A stream persisted without a terminal
// event (the producing process died mid-run) replays its chunks followed by
// a synthesized interruption error.
func (m *BadgerStreamManager) Lookup(_ context.Context, id string) (Stream, error) {
	m.mu.RLock()
	s, ok := m.live[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	events, err := m.loadEvents(id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}

	buf := NewBuffer()
	for _, ev := range events {
		if err := buf.Append(ev); err != nil {
			return nil, fmt.Errorf("streaming: replay stream %s: %w", id, err)
		}
	}
	if !buf.Closed() {
		interrupted := NewErrorEvent(ErrorDetail{
			Status:  "INTERNAL_SERVER_ERROR",
			Message: "stream flow error",
			Details: "stream interrupted before completion",
		})
		if err := buf.Append(interrupted); err != nil {
			return nil, fmt.Errorf("streaming: close interrupted stream %s: %w", id, err)
		}
	}
	return buf, nil
}

// Close closes the database. Idempotent.
func (m *BadgerStreamManager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.live = make(map[string]*badgerStream)
		m.mu.Unlock()
		m.closeErr = m.db.Close()
	})
	return m.closeErr
}

// retire drops the live buffer for a finished stream; subsequent lookups
// read from the database.
func (m *BadgerStreamManager) retire(id string) {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
}

func (m *BadgerStreamManager) persist(id string, seq uint64, ev Event) error {
	stored, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(eventKey(id, seq), stored)
		if m.ttl > 0 {
			entry = entry.WithTTL(m.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (m *BadgerStreamManager) loadEvents(id string) ([]Event, error) {
	var events []Event
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := eventPrefix(id)
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ev, err := decodeEvent(val)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("streaming: load stream %s: %w", id, err)
	}
	return events, nil
}

// badgerStream couples a live buffer with write-through persistence. The
// single-producer contract of Buffer extends to seq, which only the
// producing goroutine touches.
type badgerStream struct {
	id  string
	buf *Buffer
	mgr *BadgerStreamManager
	seq uint64
}

func (s *badgerStream) Append(ev Event) error {
	if err := s.buf.Append(ev); err != nil {
		return err
	}
	if err := s.mgr.persist(s.id, s.seq, ev); err != nil {
		s.mgr.logger.Error("persist stream event failed", "stream_id", s.id, "seq", s.seq, "error", err)
		return err
	}
	s.seq++
	if ev.Terminal() {
		s.mgr.retire(s.id)
	}
	return nil
}

func (s *badgerStream) SnapshotAndSubscribe() ([]Event, *Subscription) {
	return s.buf.SnapshotAndSubscribe()
}

func (s *badgerStream) Closed() bool { return s.buf.Closed() }

// Key layout: ev/<stream-id>/<seq big-endian>. Big-endian sequence numbers
// keep badger's lexicographic iteration in append order.
func eventPrefix(id string) []byte {
	return []byte("ev/" + id + "/")
}

func eventKey(id string, seq uint64) []byte {
	key := make([]byte, 0, len(id)+12)
	key = append(key, eventPrefix(id)...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

// storedEvent is the msgpack representation of an Event. Error details are
// kept as JSON bytes so replayed frames are byte-identical to live ones.
type storedEvent struct {
	Kind       int8   `msgpack:"k"`
	Data       []byte `msgpack:"d,omitempty"`
	ErrStatus  string `msgpack:"es,omitempty"`
	ErrMessage string `msgpack:"em,omitempty"`
	ErrDetails []byte `msgpack:"ed,omitempty"`
}

func encodeEvent(ev Event) ([]byte, error) {
	stored := storedEvent{Kind: int8(ev.Kind), Data: ev.Data}
	if ev.Error != nil {
		stored.ErrStatus = ev.Error.Status
		stored.ErrMessage = ev.Error.Message
		if ev.Error.Details != nil {
			detail, err := json.Marshal(ev.Error.Details)
			if err != nil {
				return nil, fmt.Errorf("streaming: encode error detail: %w", err)
			}
			stored.ErrDetails = detail
		}
	}
	data, err := msgpack.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("streaming: encode event: %w", err)
	}
	return data, nil
}

func decodeEvent(data []byte) (Event, error) {
	var stored storedEvent
	if err := msgpack.Unmarshal(data, &stored); err != nil {
		return Event{}, fmt.Errorf("streaming: decode event: %w", err)
	}
	ev := Event{Kind: Kind(stored.Kind), Data: stored.Data}
	if ev.Kind == KindError {
		detail := ErrorDetail{Status: stored.ErrStatus, Message: stored.ErrMessage}
		if len(stored.ErrDetails) > 0 {
			if err := json.Unmarshal(stored.ErrDetails, &detail.Details); err != nil {
				return Event{}, fmt.Errorf("streaming: decode error detail: %w", err)
			}
		}
		ev.Error = &detail
	}
	return ev, nil
}

// badgerLogAdapter routes badger's internal logging through the manager's
// logger, dropping the noisy info/debug levels.
type badgerLogAdapter struct {
	logger logging.Logger
}

func (a badgerLogAdapter) Errorf(f string, v ...any)   { a.logger.Error(fmt.Sprintf("badger: "+f, v...)) }
func (a badgerLogAdapter) Warningf(f string, v ...any) { a.logger.Warn(fmt.Sprintf("badger: "+f, v...)) }
func (a badgerLogAdapter) Infof(string, ...any)        {}
func (a badgerLogAdapter) Debugf(string, ...any)       {}

package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/flowmesh/logging"
)

// Options configures the in-memory stream manager.
type Options struct {
	// TTL is how long a finished stream remains replayable after its
	// terminal event. Expired streams are evicted and behave as if they
	// never existed.
	TTL time.Duration

	// SweepInterval controls how often the janitor scans for expired
	// streams.
	SweepInterval time.Duration

	// Logger receives eviction and lifecycle logs. Defaults to NoOpLogger.
	Logger logging.Logger
}

// DefaultOptions are safe for development and tests.
var DefaultOptions = Options{
	TTL:           10 * time.Minute,
	SweepInterval: time.Minute,
}

// InMemoryStreamManager keeps every stream in process memory. Create and
// Lookup only hold the registry lock for the map operation itself; all
// per-stream synchronization lives in the Buffer, so unrelated streams never
// serialize on each other.
type InMemoryStreamManager struct {
	mu      sync.RWMutex
	streams map[string]*Buffer
	opts    Options
	logger  logging.Logger

	stopJanitor chan struct{}
	closeOnce   sync.Once
}

// NewInMemoryStreamManager creates a manager with optional overrides.
func NewInMemoryStreamManager(optFns ...func(o *Options)) *InMemoryStreamManager {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	m := &InMemoryStreamManager{
		streams:     make(map[string]*Buffer),
		opts:        opts,
		logger:      opts.Logger,
		stopJanitor: make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Create allocates a fresh stream id backed by an empty buffer.
func (m *InMemoryStreamManager) Create(_ context.Context) (string, Stream, error) {
	id := uuid.NewString()
	buf := NewBuffer()

	m.mu.Lock()
	m.streams[id] = buf
	m.mu.Unlock()

	m.logger.Debug("stream created", "stream_id", id)
	return id, buf, nil
}

// Lookup resolves a stream id.
func (m *InMemoryStreamManager) Lookup(_ context.Context, id string) (Stream, error) {
	m.mu.RLock()
	buf, ok := m.streams[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return buf, nil
}

// Close stops the janitor and drops all streams. Idempotent.
func (m *InMemoryStreamManager) Close() error {
	m.closeOnce.Do(func() {
		close(m.stopJanitor)
		m.mu.Lock()
		m.streams = make(map[string]*Buffer)
		m.mu.Unlock()
	})
	return nil
}

// janitor evicts finished streams whose TTL has elapsed.
func (m *InMemoryStreamManager) janitor() {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopJanitor:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *InMemoryStreamManager) sweep(now time.Time) {
	var expired []string

	m.mu.RLock()
	for id, buf := range m.streams {
		if closedAt, ok := buf.ClosedAt(); ok && now.Sub(closedAt) > m.opts.TTL {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	m.mu.Lock()
	for _, id := range expired {
		delete(m.streams, id)
	}
	m.mu.Unlock()

	m.logger.Debug("streams evicted", "count", len(expired))
}

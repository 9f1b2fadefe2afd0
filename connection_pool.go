package firebird

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// PoolOptions configures a Pool. The zero value means: no pre-warmed
// connections, at most DefaultMaxSize open, unbounded connection lifetime,
// no validation on acquire, and DefaultAcquireTimeout before a blocked
// acquire fails.
type PoolOptions struct {
	MinSize            int
	MaxSize            int
	ConnectionLifetime time.Duration
	Validate           bool
	AcquireTimeout     time.Duration
}

const (
	DefaultMaxSize        = 10
	DefaultAcquireTimeout = 30 * time.Second
)

type poolEntry struct {
	conn        *Connection
	created     time.Time
	lastChecked time.Time
}

// Pool is a bounded set of connections to one endpoint. A connection is
// either idle inside the pool or checked out by exactly one caller; the
// semaphore bounds the total and blocks acquirers when the pool is at
// capacity with nothing idle.
type Pool struct {
	endpoint string
	opts     PoolOptions

	sem *semaphore.Weighted

	mu     sync.Mutex
	idle   []*poolEntry
	closed bool

	// overridable for tests
	connect func() (*Connection, error)
}

// NewPool creates a pool for the endpoint and pre-warms MinSize
// connections. Pre-warm failures fail pool construction rather than
// surfacing later on some unlucky acquire.
func NewPool(endpoint string, opts PoolOptions) (*Pool, error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}

	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultAcquireTimeout
	}

	if opts.MinSize < 0 || opts.MinSize > opts.MaxSize {
		return nil, &PoolError{Message: "min size must be between 0 and max size"}
	}

	if _, err := ParseDSN(endpoint); err != nil {
		return nil, err
	}

	p := &Pool{
		endpoint: endpoint,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.MaxSize)),
	}

	p.connect = func() (*Connection, error) {
		return Connect(p.endpoint)
	}

	for i := 0; i < opts.MinSize; i++ {
		conn, err := p.connect()

		if err != nil {
			p.Close()

			return nil, err
		}

		now := time.Now()
		p.idle = append(p.idle, &poolEntry{conn: conn, created: now, lastChecked: now})
	}

	return p, nil
}

// Acquire checks out a connection: an idle one when available, a fresh one
// when under capacity, otherwise it blocks until a slot frees up or the
// acquire timeout elapses. The caller owns the connection exclusively
// until Release.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, &PoolError{Message: "acquire timed out waiting for a connection", Err: err}
	}

	conn, err := p.checkout()

	if err != nil {
		p.sem.Release(1)

		return nil, err
	}

	return &PooledConn{pool: p, conn: conn}, nil
}

// checkout pops idle entries, retiring expired ones and discarding any
// that fail validation, and dials a new connection when nothing idle
// survives.
func (p *Pool) checkout() (*Connection, error) {
	for {
		p.mu.Lock()

		if p.closed {
			p.mu.Unlock()

			return nil, &PoolError{Message: "pool is closed"}
		}

		if len(p.idle) == 0 {
			p.mu.Unlock()

			break
		}

		entry := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		p.mu.Unlock()

		if p.expired(entry) {
			entry.conn.Close()

			continue
		}

		if p.opts.Validate {
			if err := entry.conn.Ping(); err != nil {
				entry.conn.Close()

				continue
			}

			entry.lastChecked = time.Now()
		}

		return entry.conn, nil
	}

	conn, err := p.connect()

	if err != nil {
		return nil, &PoolError{Message: "creating connection", Err: err}
	}

	return conn, nil
}

func (p *Pool) expired(entry *poolEntry) bool {
	return p.opts.ConnectionLifetime > 0 && time.Since(entry.created) >= p.opts.ConnectionLifetime
}

func (p *Pool) release(conn *Connection, broken bool) {
	defer p.sem.Release(1)

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if broken || closed {
		conn.Close()

		return
	}

	entry := &poolEntry{conn: conn, created: conn.createdAt, lastChecked: time.Now()}

	if p.expired(entry) {
		conn.Close()

		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, entry)
	p.mu.Unlock()
}

// With runs fn with a checked-out connection and releases it on every exit
// path. An error from fn marks the connection broken only when it is the
// pool's own connection error; SQL-level errors keep it reusable.
func (p *Pool) With(ctx context.Context, fn func(*Connection) error) error {
	pc, err := p.Acquire(ctx)

	if err != nil {
		return err
	}

	defer pc.Release()

	return fn(pc.Conn())
}

// IdleCount reports how many connections sit idle in the pool.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.idle)
}

// Close closes all idle connections and fails further acquires.
// Checked-out connections are closed as they are released.
func (p *Pool) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return nil
	}

	p.closed = true
	idle := p.idle
	p.idle = nil

	p.mu.Unlock()

	var err error

	for _, entry := range idle {
		if cerr := entry.conn.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

// PooledConn is a checked-out connection. Release returns it to the pool;
// MarkBroken makes Release discard it instead. Release is idempotent, so
// deferred releases cannot double-return a connection.
type PooledConn struct {
	pool *Pool
	conn *Connection

	mu       sync.Mutex
	released bool
	broken   bool
}

func (pc *PooledConn) Conn() *Connection {
	return pc.conn
}

// MarkBroken tells the pool the connection is no longer usable.
func (pc *PooledConn) MarkBroken() {
	pc.mu.Lock()
	pc.broken = true
	pc.mu.Unlock()
}

// Release returns the connection to the pool exactly once.
func (pc *PooledConn) Release() {
	pc.mu.Lock()

	if pc.released {
		pc.mu.Unlock()

		return
	}

	pc.released = true
	broken := pc.broken

	pc.mu.Unlock()

	pc.pool.release(pc.conn, broken)
}

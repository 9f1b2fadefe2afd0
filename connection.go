package firebird

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is an authenticated attachment to one database. A connection
// is never shared between callers; the internal mutex serializes wire
// exchanges so row fetches and statement operations cannot interleave.
type Connection struct {
	ID  uuid.UUID
	dsn *DSN

	proto *wireProtocol

	mu     sync.Mutex
	closed bool

	createdAt time.Time

	batch   bool
	batchTx *Transaction
}

// Connect parses the endpoint, performs the handshake and attaches to the
// database it names.
func Connect(endpoint string) (*Connection, error) {
	dsn, err := ParseDSN(endpoint)

	if err != nil {
		return nil, err
	}

	return connect(dsn, false)
}

// CreateDatabase creates the database named by the endpoint and returns an
// attached connection to it.
func CreateDatabase(endpoint string) (*Connection, error) {
	dsn, err := ParseDSN(endpoint)

	if err != nil {
		return nil, err
	}

	return connect(dsn, true)
}

func connect(dsn *DSN, create bool) (*Connection, error) {
	channel, err := newWireChannel(dsn.addr(), connectTimeout)

	if err != nil {
		return nil, err
	}

	proto := &wireProtocol{channel: channel, dsn: dsn}

	if err := proto.connect(); err != nil {
		channel.close()

		return nil, err
	}

	if create {
		err = proto.createDatabase()
	} else {
		err = proto.attach()
	}

	if err != nil {
		channel.close()

		return nil, err
	}

	return &Connection{
		ID:        uuid.New(),
		dsn:       dsn,
		proto:     proto,
		createdAt: time.Now(),
	}, nil
}

// withProto serializes wire access. Every protocol exchange on this
// connection goes through here.
func (c *Connection) withProto(fn func(*wireProtocol) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	return fn(c.proto)
}

// ProtocolVersion reports the version negotiated during the handshake. It
// never changes for the life of the connection.
func (c *Connection) ProtocolVersion() int {
	return c.proto.protocolVersion
}

// Ping round-trips a no-op request to verify the attachment is alive.
func (c *Connection) Ping() error {
	return c.withProto(func(p *wireProtocol) error {
		return p.ping()
	})
}

// Close detaches and tears down the channel. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	if c.proto == nil {
		return nil
	}

	// Detach politely; the socket close is what actually matters.
	c.proto.detach()

	return c.proto.channel.close()
}

// Begin starts a transaction with default options: read committed with
// record versioning, waiting indefinitely for locks.
func (c *Connection) Begin() (*Transaction, error) {
	return c.BeginWithOptions(TransactionOptions{})
}

// BeginWithOptions starts a transaction with the given isolation and
// lock-wait policy.
func (c *Connection) BeginWithOptions(opts TransactionOptions) (*Transaction, error) {
	tpb, err := buildTPB(opts, c.proto.protocolVersion)

	if err != nil {
		return nil, err
	}

	var handle int32

	err = c.withProto(func(p *wireProtocol) error {
		var werr error
		handle, werr = p.startTransaction(tpb)

		return werr
	})

	if err != nil {
		return nil, err
	}

	return &Transaction{conn: c, handle: handle, opts: opts}, nil
}

// Execute runs a statement outside any caller-managed transaction. By
// default it opens an implicit transaction, executes, and commits before
// returning. In batch mode the implicit transaction stays open across
// calls until batch mode ends.
func (c *Connection) Execute(sql string, args ...any) (int64, error) {
	if c.batch {
		tx, err := c.ensureBatchTx()

		if err != nil {
			return 0, err
		}

		return tx.Execute(sql, args...)
	}

	tx, err := c.Begin()

	if err != nil {
		return 0, err
	}

	affected, err := tx.Execute(sql, args...)

	if err != nil {
		tx.Rollback()

		return 0, err
	}

	return affected, tx.Commit()
}

// Query runs a select outside any caller-managed transaction. The implicit
// transaction commits when the returned rows are closed, unless batch mode
// holds it open.
func (c *Connection) Query(sql string, args ...any) (*Rows, error) {
	if c.batch {
		tx, err := c.ensureBatchTx()

		if err != nil {
			return nil, err
		}

		return tx.Query(sql, args...)
	}

	tx, err := c.Begin()

	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(sql, args...)

	if err != nil {
		tx.Rollback()

		return nil, err
	}

	rows.ownTx = true

	return rows, nil
}

// SetBatchMode toggles suppression of the implicit per-statement commit.
// While enabled, Execute and Query share one implicit transaction; turning
// batch mode off commits it.
func (c *Connection) SetBatchMode(enabled bool) error {
	if c.batch == enabled {
		return nil
	}

	c.batch = enabled

	if enabled || c.batchTx == nil {
		return nil
	}

	tx := c.batchTx
	c.batchTx = nil

	return tx.Commit()
}

func (c *Connection) ensureBatchTx() (*Transaction, error) {
	if c.batchTx != nil && c.batchTx.State() == TxActive {
		return c.batchTx, nil
	}

	tx, err := c.Begin()

	if err != nil {
		return nil, err
	}

	c.batchTx = tx

	return tx, nil
}

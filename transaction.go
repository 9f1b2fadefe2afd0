package firebird

import "sync"

// TxState is the transaction's local lifecycle state. Completion operations
// consult it before touching the wire, so completing a finished transaction
// fails deterministically instead of racing the server.
type TxState int

const (
	TxActive TxState = iota
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	}

	return "unknown"
}

// Transaction is a server transaction handle plus its local state. All
// statement activity under the transaction routes through the owning
// connection.
type Transaction struct {
	conn   *Connection
	handle int32
	opts   TransactionOptions

	mu    sync.Mutex
	state TxState
}

func (t *Transaction) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

func (t *Transaction) Options() TransactionOptions {
	return t.opts
}

// Commit completes the transaction. A transaction that has already been
// committed or rolled back returns TransactionStateError without any wire
// traffic.
func (t *Transaction) Commit() error {
	return t.complete("commit", TxCommitted, t.conn.proto.commitTransaction)
}

// Rollback completes the transaction, discarding its changes. Like Commit,
// it checks local state before any wire traffic.
func (t *Transaction) Rollback() error {
	return t.complete("rollback", TxRolledBack, t.conn.proto.rollbackTransaction)
}

func (t *Transaction) complete(op string, target TxState, wire func(int32) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TxActive {
		return &TransactionStateError{State: t.state, Op: op}
	}

	// The handle is dead after the attempt either way.
	t.state = target

	return t.conn.withProto(func(*wireProtocol) error {
		return wire(t.handle)
	})
}

// CommitRetaining commits the work done so far while keeping the
// transaction context open for further statements.
func (t *Transaction) CommitRetaining() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TxActive {
		return &TransactionStateError{State: t.state, Op: "commit retaining"}
	}

	return t.conn.withProto(func(p *wireProtocol) error {
		return p.commitRetaining(t.handle)
	})
}

func (t *Transaction) active(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TxActive {
		return &TransactionStateError{State: t.state, Op: op}
	}

	return nil
}

// Execute prepares and runs a statement under this transaction, returning
// the number of affected records.
func (t *Transaction) Execute(sql string, args ...any) (int64, error) {
	stmt, err := t.Prepare(sql)

	if err != nil {
		return 0, err
	}

	defer stmt.Close()

	return stmt.Execute(args...)
}

// Query prepares and runs a select under this transaction. The statement
// is released when the rows are closed.
func (t *Transaction) Query(sql string, args ...any) (*Rows, error) {
	stmt, err := t.Prepare(sql)

	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(args...)

	if err != nil {
		stmt.Close()

		return nil, err
	}

	rows.ownStmt = true

	return rows, nil
}

// CreateBlob uploads data as a new blob under this transaction and returns
// the 8-byte blob id, ready to bind as a statement parameter.
func (t *Transaction) CreateBlob(data []byte) ([]byte, error) {
	if err := t.active("create blob"); err != nil {
		return nil, err
	}

	var id []byte

	err := t.conn.withProto(func(p *wireProtocol) error {
		var werr error
		id, werr = p.createBlob(t.handle, data)

		return werr
	})

	if err != nil {
		return nil, err
	}

	return id, nil
}

// Prepare compiles a statement under this transaction for repeated
// execution. The result descriptors are fixed at prepare time.
func (t *Transaction) Prepare(sql string) (*Statement, error) {
	if err := t.active("prepare"); err != nil {
		return nil, err
	}

	stmt := &Statement{tx: t}

	err := t.conn.withProto(func(p *wireProtocol) error {
		handle, err := p.allocateStatement()

		if err != nil {
			return err
		}

		stmt.handle = handle

		stmt.stmtType, stmt.cols, err = p.prepareStatement(t.handle, handle, sql)

		if err != nil {
			p.freeStatement(handle, dsqlDrop)
		}

		return err
	})

	if err != nil {
		return nil, err
	}

	return stmt, nil
}

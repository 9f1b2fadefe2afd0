package firebird

import "sync"

// Statement is a compiled statement bound to the transaction it was
// prepared under. Its column descriptors are fixed at prepare time and
// every fetch decodes against them.
type Statement struct {
	tx     *Transaction
	handle int32

	stmtType int
	cols     []ColumnDescriptor

	mu     sync.Mutex
	closed bool
}

// Columns returns the result descriptors. Empty for statements that
// produce no rows.
func (s *Statement) Columns() []ColumnDescriptor {
	return s.cols
}

// IsSelect reports whether the statement produces a result set.
func (s *Statement) IsSelect() bool {
	return s.stmtType == iscInfoSQLStmtSelect || s.stmtType == iscInfoSQLStmtSelectForUpd
}

// Execute runs the statement with the given parameters and returns the
// number of affected records. For selects, use Query instead.
func (s *Statement) Execute(args ...any) (int64, error) {
	if err := s.usable("execute"); err != nil {
		return 0, err
	}

	var affected int64

	err := s.tx.conn.withProto(func(p *wireProtocol) error {
		if err := p.executeStatement(s.tx.handle, s.handle, args); err != nil {
			return err
		}

		if s.IsSelect() {
			return nil
		}

		var err error
		affected, err = p.rowsAffected(s.handle)

		return err
	})

	return affected, err
}

// Query runs the statement and returns its result rows. Rows are fetched
// in batches as the caller iterates.
func (s *Statement) Query(args ...any) (*Rows, error) {
	if err := s.usable("query"); err != nil {
		return nil, err
	}

	err := s.tx.conn.withProto(func(p *wireProtocol) error {
		return p.executeStatement(s.tx.handle, s.handle, args)
	})

	if err != nil {
		return nil, err
	}

	return &Rows{stmt: s}, nil
}

func (s *Statement) usable(op string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return &ProtocolError{Message: op + " on closed statement"}
	}

	return s.tx.active(op)
}

// Close releases the server-side statement. Safe to call more than once.
func (s *Statement) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.mu.Unlock()

	return s.tx.conn.withProto(func(p *wireProtocol) error {
		return p.freeStatement(s.handle, dsqlDrop)
	})
}

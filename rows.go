package firebird

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rows iterates a statement's result set. Batches are pulled from the
// server lazily as the caller advances.
type Rows struct {
	stmt *Statement

	buf [][]Value
	idx int
	eof bool

	cur []Value
	err error

	ownStmt bool
	ownTx   bool
	closed  bool
}

// Columns returns the result descriptors, fixed at prepare time.
func (r *Rows) Columns() []ColumnDescriptor {
	return r.stmt.cols
}

// Next advances to the next row, fetching another batch from the server
// when the buffered one is exhausted. It returns false at the end of the
// cursor or on error; check Err afterwards.
func (r *Rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}

	if r.idx >= len(r.buf) {
		if r.eof {
			return false
		}

		r.buf = nil
		r.idx = 0

		r.err = r.stmt.tx.conn.withProto(func(p *wireProtocol) error {
			var err error
			r.buf, r.eof, err = p.fetchRows(r.stmt.handle, r.stmt.tx.handle, r.stmt.cols)

			return err
		})

		if r.err != nil || len(r.buf) == 0 {
			return false
		}
	}

	r.cur = r.buf[r.idx]
	r.idx++

	return true
}

// Values returns the current row.
func (r *Rows) Values() []Value {
	return r.cur
}

// Get returns the current row's i-th column.
func (r *Rows) Get(i int) Value {
	return r.cur[i]
}

// Err reports the first error hit while iterating.
func (r *Rows) Err() error {
	return r.err
}

// Scan copies the current row into the given destinations, converting each
// column through its typed accessor.
func (r *Rows) Scan(dests ...any) error {
	if r.cur == nil {
		return &CodecError{Message: "scan called without a current row"}
	}

	if len(dests) != len(r.cur) {
		return &CodecError{Message: fmt.Sprintf("scan expects %d destinations, got %d", len(r.cur), len(dests))}
	}

	for i, dest := range dests {
		if err := scanValue(r.cur[i], dest); err != nil {
			return &CodecError{Message: fmt.Sprintf("column %d: %v", i, err)}
		}
	}

	return nil
}

func scanValue(v Value, dest any) error {
	if d, ok := dest.(*Value); ok {
		*d = v

		return nil
	}

	if d, ok := dest.(*any); ok {
		*d = v.Native()

		return nil
	}

	if v.IsNull() {
		return &CodecError{Message: "cannot scan NULL into a non-nullable destination"}
	}

	var err error

	switch d := dest.(type) {
	case *string:
		*d, err = v.Text()
	case *[]byte:
		*d, err = v.Bytes()
	case *int:
		var n int64
		n, err = v.Int64()
		*d = int(n)
	case *int64:
		*d, err = v.Int64()
	case *int32:
		*d, err = v.Int32()
	case *int16:
		*d, err = v.Int16()
	case *float64:
		*d, err = v.Float64()
	case *float32:
		*d, err = v.Float32()
	case *bool:
		*d, err = v.Bool()
	case *time.Time:
		*d, err = v.Time()
	case *decimal.Decimal:
		*d, err = v.Decimal()
	default:
		return fmt.Errorf("unsupported destination type %T", dest)
	}

	return err
}

// Close releases the rows and whatever they own: the statement when it was
// created for this query, and the implicit transaction when the query ran
// in autocommit mode. Closing twice is a no-op.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	var err error

	if r.ownStmt {
		err = r.stmt.Close()
	}

	if r.ownTx {
		tx := r.stmt.tx

		if r.err != nil {
			tx.Rollback()
		} else if cerr := tx.Commit(); err == nil {
			err = cerr
		}
	}

	return err
}

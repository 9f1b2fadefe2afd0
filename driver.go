package firebird

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"math/big"

	"github.com/shopspring/decimal"
)

// database/sql integration. The driver defers server-side preparation to
// execution time so prepared handles always live under the statement's
// transaction.

func init() {
	sql.Register("firebird", &Driver{})
}

type Driver struct{}

func (d *Driver) Open(name string) (driver.Conn, error) {
	conn, err := Connect(name)

	if err != nil {
		return nil, err
	}

	return &sqlConn{conn: conn}, nil
}

type sqlConn struct {
	conn *Connection
	tx   *Transaction
}

func (c *sqlConn) Prepare(query string) (driver.Stmt, error) {
	return &sqlStmt{c: c, query: query}, nil
}

func (c *sqlConn) Close() error {
	return c.conn.Close()
}

func (c *sqlConn) Begin() (driver.Tx, error) {
	tx, err := c.conn.Begin()

	if err != nil {
		return nil, err
	}

	c.tx = tx

	return &sqlTx{c: c}, nil
}

func (c *sqlConn) Ping(ctx context.Context) error {
	return c.conn.Ping()
}

type sqlTx struct {
	c *sqlConn
}

func (t *sqlTx) Commit() error {
	tx := t.c.tx
	t.c.tx = nil

	if tx == nil {
		return errors.New("no transaction in progress")
	}

	return tx.Commit()
}

func (t *sqlTx) Rollback() error {
	tx := t.c.tx
	t.c.tx = nil

	if tx == nil {
		return errors.New("no transaction in progress")
	}

	return tx.Rollback()
}

type sqlStmt struct {
	c     *sqlConn
	query string
}

func (s *sqlStmt) Close() error {
	return nil
}

func (s *sqlStmt) NumInput() int {
	return -1
}

func driverArgs(args []driver.Value) []any {
	out := make([]any, len(args))

	for i, a := range args {
		out[i] = a
	}

	return out
}

func (s *sqlStmt) Exec(args []driver.Value) (driver.Result, error) {
	var affected int64
	var err error

	if s.c.tx != nil {
		affected, err = s.c.tx.Execute(s.query, driverArgs(args)...)
	} else {
		affected, err = s.c.conn.Execute(s.query, driverArgs(args)...)
	}

	if err != nil {
		return nil, err
	}

	return sqlResult{affected: affected}, nil
}

func (s *sqlStmt) Query(args []driver.Value) (driver.Rows, error) {
	var rows *Rows
	var err error

	if s.c.tx != nil {
		rows, err = s.c.tx.Query(s.query, driverArgs(args)...)
	} else {
		rows, err = s.c.conn.Query(s.query, driverArgs(args)...)
	}

	if err != nil {
		return nil, err
	}

	return &sqlRows{rows: rows}, nil
}

type sqlResult struct {
	affected int64
}

func (r sqlResult) LastInsertId() (int64, error) {
	return 0, errors.New("last insert id is not reported; use RETURNING")
}

func (r sqlResult) RowsAffected() (int64, error) {
	return r.affected, nil
}

type sqlRows struct {
	rows *Rows
}

func (r *sqlRows) Columns() []string {
	cols := r.rows.Columns()
	names := make([]string, len(cols))

	for i, d := range cols {
		names[i] = d.Name
	}

	return names
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

func (r *sqlRows) Next(dest []driver.Value) error {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}

		return io.EOF
	}

	for i, v := range r.rows.Values() {
		switch native := v.Native().(type) {
		case decimal.Decimal:
			dest[i] = native.String()
		case *big.Int:
			dest[i] = native.String()
		case int16:
			dest[i] = int64(native)
		case int32:
			dest[i] = int64(native)
		case float32:
			dest[i] = float64(native)
		default:
			dest[i] = native
		}
	}

	return nil
}

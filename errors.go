package firebird

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed is returned when the server closes the stream while
// the client still expects data. A zero-length read is never surfaced as
// valid data.
var ErrConnectionClosed = errors.New("firebird: connection closed by peer")

// ConnectError covers every failure of a connection attempt: unreachable
// endpoint, protocol version mismatch, and authentication failure. Connect
// attempts are never retried internally.
type ConnectError struct {
	Message string
	Err     error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("firebird: connect: %s: %v", e.Message, e.Err)
	}

	return fmt.Sprintf("firebird: connect: %s", e.Message)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a malformed or unexpected message from the server.
// The connection must be considered unusable after one is returned.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("firebird: protocol: %s", e.Message)
}

// ServerError carries a decoded status vector from an op_response.
type ServerError struct {
	Code     int
	SQLState string
	Message  string
}

func (e *ServerError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("firebird: server error %d (%s): %s", e.Code, e.SQLState, e.Message)
	}

	return fmt.Sprintf("firebird: server error %d: %s", e.Code, e.Message)
}

// CodecError reports a value that cannot be represented: out-of-range
// narrowing, a type not supported under the negotiated protocol version, or
// a malformed descriptor. Values are never silently truncated.
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("firebird: codec: %s", e.Message)
}

// TransactionStateError reports commit or rollback on an already-completed
// transaction.
type TransactionStateError struct {
	State TxState
	Op    string
}

func (e *TransactionStateError) Error() string {
	return fmt.Sprintf("firebird: %s on %s transaction", e.Op, e.State)
}

// PoolError reports acquire timeouts and use of a closed pool. Connection
// creation failures inside the pool propagate as the wrapped ConnectError.
type PoolError struct {
	Message string
	Err     error
}

func (e *PoolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("firebird: pool: %s: %v", e.Message, e.Err)
	}

	return fmt.Sprintf("firebird: pool: %s", e.Message)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

// EventError reports a registration exceeding the event-count limit or
// cancellation of an already-cancelled registration.
type EventError struct {
	Message string
}

func (e *EventError) Error() string {
	return fmt.Sprintf("firebird: events: %s", e.Message)
}

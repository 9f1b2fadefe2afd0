package firebird

import "fmt"

// IsolationLevel selects the transaction's isolation variant. The
// read-committed record-versioning split maps directly to parameter-block
// flags; the server enforces the resulting concurrency semantics.
type IsolationLevel int

const (
	// ReadCommitted with record versioning, the default.
	ReadCommitted IsolationLevel = iota
	// ReadCommittedNoRecVersion is read committed with pessimistic locking.
	ReadCommittedNoRecVersion
	// ReadCommittedReadOnly is read committed without write access.
	ReadCommittedReadOnly
	// Snapshot is the concurrency isolation model.
	Snapshot
	// SnapshotReadOnly is snapshot without write access.
	SnapshotReadOnly
	// Serializable is the consistency isolation model.
	Serializable
	// ReadConsistency is the fourth-generation repeatable-read mode.
	ReadConsistency
)

func (l IsolationLevel) String() string {
	switch l {
	case ReadCommitted:
		return "read committed"
	case ReadCommittedNoRecVersion:
		return "read committed no record version"
	case ReadCommittedReadOnly:
		return "read committed read only"
	case Snapshot:
		return "snapshot"
	case SnapshotReadOnly:
		return "snapshot read only"
	case Serializable:
		return "serializable"
	case ReadConsistency:
		return "read consistency"
	}

	return fmt.Sprintf("isolation(%d)", int(l))
}

// LockWait selects the lock-wait policy: wait forever, fail immediately, or
// wait up to TimeoutSeconds.
type LockWait struct {
	NoWait         bool
	TimeoutSeconds int
}

// Wait blocks until the conflicting lock is released.
var Wait = LockWait{}

// NoWait fails immediately on a lock conflict.
var NoWait = LockWait{NoWait: true}

// WaitTimeout waits up to the given number of seconds.
func WaitTimeout(seconds int) LockWait {
	return LockWait{TimeoutSeconds: seconds}
}

// TransactionOptions configures a transaction. The zero value is read
// committed with record versioning, waiting indefinitely for locks.
type TransactionOptions struct {
	Isolation IsolationLevel
	LockWait  LockWait
}

// buildTPB produces the transaction parameter block for the given options.
// The block is deterministic and never mutated after the transaction
// starts. ReadConsistency requires a connection negotiated at protocol
// version 16 or newer; building it for an older connection fails here
// rather than producing a block the server would reject.
func buildTPB(opts TransactionOptions, protocolVersion int) ([]byte, error) {
	tpb := []byte{iscTpbVersion3}

	switch opts.Isolation {
	case ReadCommitted:
		tpb = append(tpb, iscTpbWrite, iscTpbReadCommitted, iscTpbRecVersion)
	case ReadCommittedNoRecVersion:
		tpb = append(tpb, iscTpbWrite, iscTpbReadCommitted, iscTpbNoRecVersion)
	case ReadCommittedReadOnly:
		tpb = append(tpb, iscTpbRead, iscTpbReadCommitted, iscTpbRecVersion)
	case Snapshot:
		tpb = append(tpb, iscTpbWrite, iscTpbConcurrency)
	case SnapshotReadOnly:
		tpb = append(tpb, iscTpbRead, iscTpbConcurrency)
	case Serializable:
		tpb = append(tpb, iscTpbWrite, iscTpbConsistency)
	case ReadConsistency:
		if protocolVersion < protocolVersion16 {
			return nil, &CodecError{
				Message: fmt.Sprintf("read consistency requires protocol version 16, connection negotiated %d", protocolVersion),
			}
		}

		tpb = append(tpb, iscTpbWrite, iscTpbReadCommitted, iscTpbReadConsistency)
	default:
		return nil, &CodecError{Message: fmt.Sprintf("unknown isolation level %d", int(opts.Isolation))}
	}

	switch {
	case opts.LockWait.NoWait:
		tpb = append(tpb, iscTpbNowait)
	case opts.LockWait.TimeoutSeconds > 0:
		t := opts.LockWait.TimeoutSeconds

		tpb = append(tpb, iscTpbWait, iscTpbLockTimeout, 4,
			byte(t), byte(t>>8), byte(t>>16), byte(t>>24))
	default:
		tpb = append(tpb, iscTpbWait)
	}

	return tpb, nil
}

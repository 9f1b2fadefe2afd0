package firebird

import (
	"bytes"
	"testing"
)

func TestBuildTPBDefault(t *testing.T) {
	tpb, err := buildTPB(TransactionOptions{}, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	expected := []byte{iscTpbVersion3, iscTpbWrite, iscTpbReadCommitted, iscTpbRecVersion, iscTpbWait}

	if !bytes.Equal(tpb, expected) {
		t.Fatalf("Expected %v, got %v", expected, tpb)
	}

	// Same options, same bytes.
	again, _ := buildTPB(TransactionOptions{}, protocolVersion13)

	if !bytes.Equal(tpb, again) {
		t.Fatal("Expected identical options to produce identical blocks")
	}
}

func TestBuildTPBIsolationLevels(t *testing.T) {
	cases := []struct {
		isolation IsolationLevel
		expected  []byte
	}{
		{Snapshot, []byte{iscTpbVersion3, iscTpbWrite, iscTpbConcurrency, iscTpbWait}},
		{SnapshotReadOnly, []byte{iscTpbVersion3, iscTpbRead, iscTpbConcurrency, iscTpbWait}},
		{Serializable, []byte{iscTpbVersion3, iscTpbWrite, iscTpbConsistency, iscTpbWait}},
		{ReadCommittedNoRecVersion, []byte{iscTpbVersion3, iscTpbWrite, iscTpbReadCommitted, iscTpbNoRecVersion, iscTpbWait}},
		{ReadCommittedReadOnly, []byte{iscTpbVersion3, iscTpbRead, iscTpbReadCommitted, iscTpbRecVersion, iscTpbWait}},
	}

	for _, c := range cases {
		tpb, err := buildTPB(TransactionOptions{Isolation: c.isolation}, protocolVersion13)

		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(tpb, c.expected) {
			t.Fatalf("%s: expected %v, got %v", c.isolation, c.expected, tpb)
		}
	}
}

func TestBuildTPBLockWait(t *testing.T) {
	tpb, err := buildTPB(TransactionOptions{LockWait: NoWait}, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	if tpb[len(tpb)-1] != iscTpbNowait {
		t.Fatalf("Expected trailing nowait tag, got %v", tpb)
	}

	tpb, err = buildTPB(TransactionOptions{LockWait: WaitTimeout(10)}, protocolVersion13)

	if err != nil {
		t.Fatal(err)
	}

	expected := []byte{iscTpbWait, iscTpbLockTimeout, 4, 10, 0, 0, 0}

	if !bytes.Equal(tpb[len(tpb)-7:], expected) {
		t.Fatalf("Expected timeout suffix %v, got %v", expected, tpb)
	}
}

func TestBuildTPBReadConsistencyVersionGate(t *testing.T) {
	if _, err := buildTPB(TransactionOptions{Isolation: ReadConsistency}, protocolVersion13); err == nil {
		t.Fatal("Expected error for read consistency on an old connection but got nil")
	}

	tpb, err := buildTPB(TransactionOptions{Isolation: ReadConsistency}, protocolVersion16)

	if err != nil {
		t.Fatal(err)
	}

	expected := []byte{iscTpbVersion3, iscTpbWrite, iscTpbReadCommitted, iscTpbReadConsistency, iscTpbWait}

	if !bytes.Equal(tpb, expected) {
		t.Fatalf("Expected %v, got %v", expected, tpb)
	}
}

package firebird

import (
	"bytes"
	"errors"
	"testing"
)

func TestXDRBytesPadding(t *testing.T) {
	buf := xdrBytes(nil, []byte("abcde"))

	expected := []byte{0, 0, 0, 5, 'a', 'b', 'c', 'd', 'e', 0, 0, 0}

	if !bytes.Equal(buf, expected) {
		t.Fatalf("Expected %x, got %x", expected, buf)
	}

	if buf := xdrBytes(nil, []byte("abcd")); len(buf) != 8 {
		t.Fatalf("Expected no padding for aligned data, got %d bytes", len(buf))
	}

	if buf := xdrBytes(nil, nil); len(buf) != 4 {
		t.Fatalf("Expected a bare length word, got %d bytes", len(buf))
	}
}

func infoItem(tag byte, data ...byte) []byte {
	item := []byte{tag, byte(len(data)), byte(len(data) >> 8)}

	return append(item, data...)
}

func TestParseSQLInfo(t *testing.T) {
	var info []byte

	info = append(info, infoItem(iscInfoSQLStmtType, 1, 0)...)
	info = append(info, infoItem(iscInfoSQLDescribeVars, 2, 0)...)

	info = append(info, infoItem(iscInfoSQLSqldaSeq, 1, 0)...)
	info = append(info, infoItem(iscInfoSQLType, 0xC1, 0x01)...) // VARCHAR, nullable
	info = append(info, infoItem(iscInfoSQLSubType, 0, 0)...)
	info = append(info, infoItem(iscInfoSQLScale, 0, 0)...)
	info = append(info, infoItem(iscInfoSQLLength, 10, 0)...)
	info = append(info, infoItem(iscInfoSQLField, 'N', 'A', 'M', 'E')...)
	info = append(info, infoItem(iscInfoSQLAlias, 'N', '1')...)
	info = append(info, iscInfoSQLDescribeEnd)

	info = append(info, infoItem(iscInfoSQLSqldaSeq, 2, 0)...)
	info = append(info, infoItem(iscInfoSQLType, 0xF4, 0x01)...) // SMALLINT
	info = append(info, infoItem(iscInfoSQLScale, 0xFE, 0xFF)...)
	info = append(info, infoItem(iscInfoSQLLength, 2, 0)...)
	info = append(info, infoItem(iscInfoSQLField, 'I', 'D')...)
	info = append(info, iscInfoSQLDescribeEnd)

	info = append(info, iscInfoEnd)

	stmtType, cols, err := parseSQLInfo(info)

	if err != nil {
		t.Fatal(err)
	}

	if stmtType != iscInfoSQLStmtSelect {
		t.Fatalf("Expected a select statement, got type %d", stmtType)
	}

	if len(cols) != 2 {
		t.Fatalf("Expected 2 columns, got %d", len(cols))
	}

	first := cols[0]

	if first.TypeCode != sqlTypeVarying || !first.Nullable || first.Length != 10 {
		t.Fatalf("Unexpected first descriptor %+v", first)
	}

	if first.Name != "N1" || first.FieldName != "NAME" {
		t.Fatalf("Expected the alias to win, got %q/%q", first.Name, first.FieldName)
	}

	second := cols[1]

	if second.TypeCode != sqlTypeShort || second.Scale != -2 {
		t.Fatalf("Unexpected second descriptor %+v", second)
	}

	// No alias: the field name is the column name.
	if second.Name != "ID" {
		t.Fatalf("Expected field-name fallback, got %q", second.Name)
	}

	if _, _, err := parseSQLInfo([]byte{iscInfoSQLStmtType, 4}); err == nil {
		t.Fatal("Expected error for truncated info but got nil")
	}
}

func TestParseSQLInfoColumnItemBeforeSequence(t *testing.T) {
	// A per-column item with no preceding sequence marker has no
	// descriptor to land in.
	_, _, err := parseSQLInfo([]byte{iscInfoSQLType, 2, 0, 0xC1, 0x01, iscInfoEnd})

	if err == nil {
		t.Fatal("Expected error for a column item before its sequence marker but got nil")
	}

	var perr *ProtocolError

	if !errors.As(err, &perr) {
		t.Fatalf("Expected a protocol error, got %v", err)
	}
}

func TestOutputBlr(t *testing.T) {
	cols := []ColumnDescriptor{
		{TypeCode: sqlTypeVarying, Length: 10},
		{TypeCode: sqlTypeShort, Scale: -2},
	}

	blr, err := outputBlr(cols)

	if err != nil {
		t.Fatal(err)
	}

	expected := []byte{
		blrVersion5, blrBegin, blrMessage, 0, 4, 0,
		blrVarying, 10, 0, blrShort, 0,
		blrShort, 0xFE, blrShort, 0,
		blrEnd, blrEoc,
	}

	if !bytes.Equal(blr, expected) {
		t.Fatalf("Expected %v, got %v", expected, blr)
	}
}

func TestOutputBlrUnknownTypeCode(t *testing.T) {
	_, err := outputBlr([]ColumnDescriptor{{TypeCode: 9999}})

	if err == nil {
		t.Fatal("Expected error for an unknown type code but got nil")
	}

	var cerr *CodecError

	if !errors.As(err, &cerr) {
		t.Fatalf("Expected a codec error, got %v", err)
	}
}

func TestReadResponseStatusVector(t *testing.T) {
	client, server := channelPair()

	go func() {
		buf := xdrInt32(nil, opResponse)
		buf = xdrInt32(buf, 0)                  // object handle
		buf = append(buf, make([]byte, 8)...)   // object id
		buf = xdrBytes(buf, nil)                // data
		buf = xdrInt32(buf, iscArgGds)
		buf = xdrInt32(buf, 335544344)
		buf = xdrInt32(buf, iscArgSQLState)
		buf = xdrString(buf, "28000")
		buf = xdrInt32(buf, iscArgInterpreted)
		buf = xdrString(buf, "I/O error during open")
		buf = xdrInt32(buf, iscArgEnd)

		server.write(buf)
		server.flush()
	}()

	p := &wireProtocol{channel: client}

	_, _, _, err := p.readResponse()

	var serverErr *ServerError

	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected a ServerError, got %v", err)
	}

	if serverErr.Code != 335544344 {
		t.Fatalf("Expected code 335544344, got %d", serverErr.Code)
	}

	if serverErr.SQLState != "28000" {
		t.Fatalf("Expected SQLSTATE 28000, got %q", serverErr.SQLState)
	}

	if serverErr.Message != "I/O error during open" {
		t.Fatalf("Unexpected message %q", serverErr.Message)
	}
}

func TestReadResponseCleanStatus(t *testing.T) {
	client, server := channelPair()

	go func() {
		buf := xdrInt32(nil, opDummy) // keep-alives are skipped
		buf = xdrInt32(buf, opResponse)
		buf = xdrInt32(buf, 17)
		buf = append(buf, make([]byte, 8)...)
		buf = xdrBytes(buf, []byte{1, 2, 3})
		buf = xdrInt32(buf, iscArgGds)
		buf = xdrInt32(buf, 0)
		buf = xdrInt32(buf, iscArgEnd)

		server.write(buf)
		server.flush()
	}()

	p := &wireProtocol{channel: client}

	handle, _, data, err := p.readResponse()

	if err != nil {
		t.Fatal(err)
	}

	if handle != 17 {
		t.Fatalf("Expected handle 17, got %d", handle)
	}

	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Fatalf("Unexpected data %x", data)
	}
}

func TestReadEvent(t *testing.T) {
	client, server := channelPair()

	epb := buildEPB([]string{"order_created"}, map[string]int{"order_created": 3})

	go func() {
		buf := xdrInt32(nil, opEvent)
		buf = xdrInt32(buf, 1) // database handle
		buf = xdrBytes(buf, epb)
		buf = append(buf, make([]byte, 8)...) // ast info
		buf = xdrInt32(buf, 9)

		server.write(buf)
		server.flush()
	}()

	got, eventID, err := readEvent(client)

	if err != nil {
		t.Fatal(err)
	}

	if eventID != 9 {
		t.Fatalf("Expected registration id 9, got %d", eventID)
	}

	counts, err := parseEPB(got)

	if err != nil {
		t.Fatal(err)
	}

	if counts["order_created"] != 3 {
		t.Fatalf("Expected count 3, got %d", counts["order_created"])
	}
}

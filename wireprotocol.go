package firebird

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// wireProtocol drives the operation-code state machine over one channel.
// Callers serialize access; no two operations may run concurrently on the
// same connection.
type wireProtocol struct {
	channel *wireChannel
	dsn     *DSN

	protocolVersion int
	acceptArch      int32
	acceptType      int32

	auth       *srpAuth
	sessionKey []byte

	dbHandle int32
}

const connectVersion3 = 3

// --- XDR packing -----------------------------------------------------------

func xdrInt32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

func xdrBytes(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	buf = append(buf, b...)

	for i := 0; i < (4-len(b)%4)%4; i++ {
		buf = append(buf, 0)
	}

	return buf
}

func xdrString(buf []byte, s string) []byte {
	return xdrBytes(buf, []byte(s))
}

func readInt32c(c *wireChannel) (int32, error) {
	b, err := c.read(4)

	if err != nil {
		return 0, err
	}

	return int32(binary.BigEndian.Uint32(b)), nil
}

func readBytesc(c *wireChannel) ([]byte, error) {
	n, err := readInt32c(c)

	if err != nil {
		return nil, err
	}

	if n < 0 {
		return nil, &ProtocolError{Message: fmt.Sprintf("negative buffer length %d", n)}
	}

	b, err := c.read(int(n + (4-n%4)%4))

	if err != nil {
		return nil, err
	}

	return b[:n], nil
}

func (p *wireProtocol) readInt32() (int32, error) {
	return readInt32c(p.channel)
}

func (p *wireProtocol) readBytes() ([]byte, error) {
	return readBytesc(p.channel)
}

// readOpCode skips keep-alive dummy packets.
func (p *wireProtocol) readOpCode() (int32, error) {
	for {
		op, err := p.readInt32()

		if err != nil {
			return 0, err
		}

		if op != opDummy {
			return op, nil
		}
	}
}

func (p *wireProtocol) send(buf []byte) error {
	if err := p.channel.write(buf); err != nil {
		return err
	}

	return p.channel.flush()
}

// --- generic response ------------------------------------------------------

// readResponse consumes an op_response: object handle, object id, data
// buffer and status vector. A non-empty status vector becomes the returned
// error.
func (p *wireProtocol) readResponse() (handle int32, oid []byte, buf []byte, err error) {
	op, err := p.readOpCode()

	if err != nil {
		return 0, nil, nil, err
	}

	return p.parseResponse(op)
}

func (p *wireProtocol) parseResponse(op int32) (handle int32, oid []byte, buf []byte, err error) {
	if op != opResponse {
		return 0, nil, nil, &ProtocolError{Message: fmt.Sprintf("expected op_response, got op %d", op)}
	}

	if handle, err = p.readInt32(); err != nil {
		return 0, nil, nil, err
	}

	if oid, err = p.channel.read(8); err != nil {
		return 0, nil, nil, err
	}

	if buf, err = p.readBytes(); err != nil {
		return 0, nil, nil, err
	}

	if err = p.readStatusVector(); err != nil {
		return 0, nil, nil, err
	}

	return handle, oid, buf, nil
}

func (p *wireProtocol) readStatusVector() error {
	sv := &ServerError{}
	var messages []string

	for {
		tag, err := p.readInt32()

		if err != nil {
			return err
		}

		switch tag {
		case iscArgEnd:
			if sv.Code != 0 {
				sv.Message = strings.Join(messages, "\n")

				return sv
			}

			return nil
		case iscArgGds:
			code, err := p.readInt32()

			if err != nil {
				return err
			}

			if sv.Code == 0 {
				sv.Code = int(code)
			}
		case iscArgNumber:
			num, err := p.readInt32()

			if err != nil {
				return err
			}

			messages = append(messages, fmt.Sprintf("%d", num))
		case iscArgString, iscArgInterpreted:
			s, err := p.readBytes()

			if err != nil {
				return err
			}

			messages = append(messages, string(s))
		case iscArgSQLState:
			s, err := p.readBytes()

			if err != nil {
				return err
			}

			sv.SQLState = string(s)
		default:
			return &ProtocolError{Message: fmt.Sprintf("unknown status vector tag %d", tag)}
		}
	}
}

// --- handshake -------------------------------------------------------------

// userIdentification builds the CNCT block carried by op_connect. The
// client's SRP public key rides along in chunks so the server can answer
// with its own key in a single round.
func (p *wireProtocol) userIdentification() []byte {
	add := func(buf []byte, tag byte, data []byte) []byte {
		buf = append(buf, tag, byte(len(data)))

		return append(buf, data...)
	}

	var ui []byte

	ui = add(ui, cnctLogin, []byte(p.dsn.User))
	ui = add(ui, cnctPluginName, []byte(p.auth.plugin))
	ui = add(ui, cnctPluginList, []byte(strings.Join(supportedAuthPlugins, ",")))

	public := p.auth.clientPublic()

	for i := 0; len(public) > 0; i++ {
		chunk := public

		if len(chunk) > 254 {
			chunk = chunk[:254]
		}

		ui = add(ui, cnctSpecificData, append([]byte{byte(i)}, chunk...))
		public = public[len(chunk):]
	}

	crypt := byte(wireCryptDisabled)

	if p.dsn.WireCrypt {
		crypt = wireCryptEnabled
	}

	ui = add(ui, cnctClientCrypt, []byte{crypt, 0, 0, 0})

	hostname, _ := os.Hostname()

	ui = add(ui, cnctUser, []byte(os.Getenv("USER")))
	ui = add(ui, cnctHost, []byte(hostname))
	ui = add(ui, cnctUserVerification, nil)

	return ui
}

// connect runs the version and plugin negotiation, authenticates, and sets
// up compression and wire encryption as negotiated.
func (p *wireProtocol) connect() error {
	auth, err := newSRPAuth(p.dsn.AuthPlugin, p.dsn.User, p.dsn.Password)

	if err != nil {
		return err
	}

	p.auth = auth

	versions := []int32{protocolVersion13, protocolVersion14, protocolVersion15, protocolVersion16}

	maxType := int32(ptypeBatchSend)

	if p.dsn.Compress {
		maxType |= pCompFlagCompress
	}

	buf := xdrInt32(nil, opConnect)
	buf = xdrInt32(buf, opAttach)
	buf = xdrInt32(buf, connectVersion3)
	buf = xdrInt32(buf, archGeneric)
	buf = xdrString(buf, p.dsn.Database)
	buf = xdrInt32(buf, int32(len(versions)))
	buf = xdrBytes(buf, p.userIdentification())

	for i, ver := range versions {
		buf = xdrInt32(buf, protocolFlag|ver)
		buf = xdrInt32(buf, archGeneric)
		buf = xdrInt32(buf, ptypeBatchSend)
		buf = xdrInt32(buf, maxType)
		buf = xdrInt32(buf, int32(i+1))
	}

	if err := p.send(buf); err != nil {
		return &ConnectError{Message: "sending connect request", Err: err}
	}

	return p.parseAccept()
}

func (p *wireProtocol) parseAccept() error {
	op, err := p.readOpCode()

	if err != nil {
		return &ConnectError{Message: "reading accept", Err: err}
	}

	switch op {
	case opAccept, opCondAccept, opAcceptData:
	case opReject:
		return &ConnectError{Message: "server rejected protocol negotiation"}
	case opResponse:
		if _, _, _, err := p.parseResponse(op); err != nil {
			return &ConnectError{Message: "connection refused", Err: err}
		}

		return &ConnectError{Message: "connection refused"}
	default:
		return &ConnectError{Message: fmt.Sprintf("unexpected op %d during negotiation", op)}
	}

	version, err := p.readInt32()

	if err != nil {
		return &ConnectError{Message: "reading accept version", Err: err}
	}

	p.protocolVersion = int(version & 0xFF)

	if p.protocolVersion < protocolVersion13 || p.protocolVersion > protocolVersion16 {
		return &ConnectError{Message: fmt.Sprintf("server selected unsupported protocol version %d", p.protocolVersion)}
	}

	if p.acceptArch, err = p.readInt32(); err != nil {
		return &ConnectError{Message: "reading accept architecture", Err: err}
	}

	if p.acceptType, err = p.readInt32(); err != nil {
		return &ConnectError{Message: "reading accept type", Err: err}
	}

	// The compression capability flag rides on the accepted type.
	if p.acceptType&pCompFlagCompress != 0 {
		p.channel.enableCompression()
	}

	if op == opAccept {
		return nil
	}

	data, err := p.readBytes()

	if err != nil {
		return &ConnectError{Message: "reading accept data", Err: err}
	}

	pluginName, err := p.readBytes()

	if err != nil {
		return &ConnectError{Message: "reading accept plugin", Err: err}
	}

	authenticated, err := p.readInt32()

	if err != nil {
		return &ConnectError{Message: "reading accept status", Err: err}
	}

	if _, err = p.readBytes(); err != nil { // keys
		return &ConnectError{Message: "reading accept keys", Err: err}
	}

	if authenticated == 0 {
		if err := p.continueAuth(string(pluginName), data); err != nil {
			return err
		}
	}

	p.sessionKey = p.auth.session()

	if p.dsn.WireCrypt && len(p.sessionKey) > 0 {
		return p.startWireCrypt()
	}

	return nil
}

// continueAuth runs the plugin's challenge/response round. A server plugin
// the client does not support, or a rejected proof, fails the connection —
// there is no unauthenticated fallback.
func (p *wireProtocol) continueAuth(plugin string, data []byte) error {
	if plugin != p.auth.plugin {
		supported := false

		for _, name := range supportedAuthPlugins {
			if name == plugin {
				supported = true
			}
		}

		if !supported {
			return &ConnectError{Message: fmt.Sprintf("server requested unsupported auth plugin %q", plugin)}
		}

		// Same key pair, different proof hash.
		p.auth.plugin = plugin
	}

	if len(data) == 0 {
		return &ConnectError{Message: "server sent no auth challenge"}
	}

	proof, err := p.auth.serverData(data)

	if err != nil {
		return err
	}

	buf := xdrInt32(nil, opContAuth)
	buf = xdrBytes(buf, proof)
	buf = xdrString(buf, p.auth.plugin)
	buf = xdrString(buf, strings.Join(supportedAuthPlugins, ","))
	buf = xdrBytes(buf, nil)

	if err := p.send(buf); err != nil {
		return &ConnectError{Message: "sending auth proof", Err: err}
	}

	if _, _, _, err := p.readResponse(); err != nil {
		return &ConnectError{Message: "authentication failed", Err: err}
	}

	return nil
}

// startWireCrypt switches the channel onto the negotiated cipher. The
// server encrypts its acknowledgement, so the cipher must be installed
// between sending op_crypt and reading the response.
func (p *wireProtocol) startWireCrypt() error {
	buf := xdrInt32(nil, opCrypt)
	buf = xdrString(buf, "Arc4")
	buf = xdrString(buf, "Symmetric")

	if err := p.send(buf); err != nil {
		return &ConnectError{Message: "sending crypt request", Err: err}
	}

	if err := p.channel.setCipher("Arc4", p.sessionKey, nil); err != nil {
		return err
	}

	if _, _, _, err := p.readResponse(); err != nil {
		return &ConnectError{Message: "wire encryption rejected", Err: err}
	}

	return nil
}

// --- database attach / create ---------------------------------------------

func dpbString(buf []byte, tag byte, s string) []byte {
	buf = append(buf, tag, byte(len(s)))

	return append(buf, s...)
}

func dpbInt32(buf []byte, tag byte, v int32) []byte {
	buf = append(buf, tag, 4)

	return binary.LittleEndian.AppendUint32(buf, uint32(v))
}

func (p *wireProtocol) buildDPB() []byte {
	dpb := []byte{iscDpbVersion1}

	dpb = dpbString(dpb, iscDpbLcCtype, "UTF8")
	dpb = dpbString(dpb, iscDpbUserName, p.dsn.User)
	dpb = append(dpb, iscDpbUTF8Filename, 1, 1)
	dpb = append(dpb, iscDpbSQLDialect, 1, 3)

	if p.dsn.Role != "" {
		dpb = dpbString(dpb, iscDpbSQLRoleName, p.dsn.Role)
	}

	if p.dsn.TimeZone != "" {
		dpb = dpbString(dpb, iscDpbSessionTimeZone, p.dsn.TimeZone)
	}

	return dpb
}

func (p *wireProtocol) attach() error {
	buf := xdrInt32(nil, opAttach)
	buf = xdrInt32(buf, 0)
	buf = xdrString(buf, p.dsn.Database)
	buf = xdrBytes(buf, p.buildDPB())

	if err := p.send(buf); err != nil {
		return &ConnectError{Message: "sending attach", Err: err}
	}

	handle, _, _, err := p.readResponse()

	if err != nil {
		return &ConnectError{Message: "attach refused", Err: err}
	}

	p.dbHandle = handle

	return nil
}

func (p *wireProtocol) createDatabase() error {
	dpb := p.buildDPB()
	dpb = dpbInt32(dpb, iscDpbPageSize, int32(p.dsn.PageSize))

	buf := xdrInt32(nil, opCreate)
	buf = xdrInt32(buf, 0)
	buf = xdrString(buf, p.dsn.Database)
	buf = xdrBytes(buf, dpb)

	if err := p.send(buf); err != nil {
		return &ConnectError{Message: "sending create", Err: err}
	}

	handle, _, _, err := p.readResponse()

	if err != nil {
		return &ConnectError{Message: "create refused", Err: err}
	}

	p.dbHandle = handle

	return nil
}

func (p *wireProtocol) detach() error {
	buf := xdrInt32(nil, opDetach)
	buf = xdrInt32(buf, p.dbHandle)

	if err := p.send(buf); err != nil {
		return err
	}

	_, _, _, err := p.readResponse()

	return err
}

func (p *wireProtocol) ping() error {
	buf := xdrInt32(nil, opPing)

	if err := p.send(buf); err != nil {
		return err
	}

	_, _, _, err := p.readResponse()

	return err
}

// --- transactions ----------------------------------------------------------

func (p *wireProtocol) startTransaction(tpb []byte) (int32, error) {
	buf := xdrInt32(nil, opTransaction)
	buf = xdrInt32(buf, p.dbHandle)
	buf = xdrBytes(buf, tpb)

	if err := p.send(buf); err != nil {
		return 0, err
	}

	handle, _, _, err := p.readResponse()

	return handle, err
}

func (p *wireProtocol) transactionOp(op, transHandle int32) error {
	buf := xdrInt32(nil, op)
	buf = xdrInt32(buf, transHandle)

	if err := p.send(buf); err != nil {
		return err
	}

	_, _, _, err := p.readResponse()

	return err
}

func (p *wireProtocol) commitTransaction(transHandle int32) error {
	return p.transactionOp(opCommit, transHandle)
}

func (p *wireProtocol) rollbackTransaction(transHandle int32) error {
	return p.transactionOp(opRollback, transHandle)
}

func (p *wireProtocol) commitRetaining(transHandle int32) error {
	return p.transactionOp(opCommitRetaining, transHandle)
}

// --- statements ------------------------------------------------------------

var describeInfoItems = []byte{
	iscInfoSQLStmtType,
	iscInfoSQLSelect,
	iscInfoSQLDescribeVars,
	iscInfoSQLSqldaSeq,
	iscInfoSQLType,
	iscInfoSQLSubType,
	iscInfoSQLScale,
	iscInfoSQLLength,
	iscInfoSQLNullInd,
	iscInfoSQLField,
	iscInfoSQLRelation,
	iscInfoSQLOwner,
	iscInfoSQLAlias,
	iscInfoSQLDescribeEnd,
}

func (p *wireProtocol) allocateStatement() (int32, error) {
	buf := xdrInt32(nil, opAllocateStatement)
	buf = xdrInt32(buf, p.dbHandle)

	if err := p.send(buf); err != nil {
		return 0, err
	}

	handle, _, _, err := p.readResponse()

	return handle, err
}

func (p *wireProtocol) prepareStatement(transHandle, stmtHandle int32, sql string) (stmtType int, cols []ColumnDescriptor, err error) {
	buf := xdrInt32(nil, opPrepareStatement)
	buf = xdrInt32(buf, transHandle)
	buf = xdrInt32(buf, stmtHandle)
	buf = xdrInt32(buf, 3) // SQL dialect
	buf = xdrString(buf, sql)
	buf = xdrBytes(buf, describeInfoItems)
	buf = xdrInt32(buf, channelBufferSize)

	if err := p.send(buf); err != nil {
		return 0, nil, err
	}

	_, _, info, err := p.readResponse()

	if err != nil {
		return 0, nil, err
	}

	return parseSQLInfo(info)
}

// parseSQLInfo walks the info response from a prepare: statement type
// followed by the column descriptions, each a sequence of tagged items.
func parseSQLInfo(info []byte) (stmtType int, cols []ColumnDescriptor, err error) {
	i := 0

	next := func() (tag int, data []byte, ok bool) {
		if i >= len(info) {
			return 0, nil, false
		}

		tag = int(info[i])
		i++

		switch tag {
		case iscInfoEnd, iscInfoSQLDescribeEnd:
			return tag, nil, true
		}

		if i+2 > len(info) {
			return 0, nil, false
		}

		n := int(binary.LittleEndian.Uint16(info[i : i+2]))
		i += 2

		if i+n > len(info) {
			return 0, nil, false
		}

		data = info[i : i+n]
		i += n

		return tag, data, true
	}

	leInt := func(b []byte) int {
		v := 0

		for j := len(b) - 1; j >= 0; j-- {
			v = v<<8 | int(b[j])
		}

		return v
	}

	var cur *ColumnDescriptor

	for {
		tag, data, ok := next()

		if !ok {
			return 0, nil, &ProtocolError{Message: "malformed statement description"}
		}

		// Per-column items are only valid after a sequence marker has
		// opened a descriptor.
		switch tag {
		case iscInfoSQLType, iscInfoSQLSubType, iscInfoSQLScale, iscInfoSQLLength,
			iscInfoSQLNullInd, iscInfoSQLField, iscInfoSQLRelation, iscInfoSQLOwner,
			iscInfoSQLAlias:
			if cur == nil {
				return 0, nil, &ProtocolError{Message: "column item before descriptor sequence"}
			}
		}

		switch tag {
		case iscInfoSQLStmtType:
			stmtType = leInt(data)
		case iscInfoSQLSelect, iscInfoSQLBind, iscInfoSQLDescribeVars, iscInfoSQLNumVariables:
			// counts; descriptors follow
		case iscInfoSQLSqldaSeq:
			cols = append(cols, ColumnDescriptor{})
			cur = &cols[len(cols)-1]
		case iscInfoSQLType:
			cur.TypeCode = leInt(data) &^ 1
			cur.Nullable = leInt(data)&1 != 0
		case iscInfoSQLSubType:
			cur.SubType = leInt(data)
		case iscInfoSQLScale:
			cur.Scale = int(int16(leInt(data)))
		case iscInfoSQLLength:
			cur.Length = leInt(data)
		case iscInfoSQLNullInd:
			if leInt(data) != 0 {
				cur.Nullable = true
			}
		case iscInfoSQLField:
			cur.FieldName = string(data)
		case iscInfoSQLRelation:
			cur.TableName = string(data)
		case iscInfoSQLOwner:
			cur.OwnerName = string(data)
		case iscInfoSQLAlias:
			cur.Name = string(data)
		case iscInfoSQLDescribeEnd:
			// one descriptor done
		case iscInfoTruncated:
			return 0, nil, &ProtocolError{Message: "statement description truncated"}
		case iscInfoEnd:
			for j := range cols {
				if cols[j].Name == "" {
					cols[j].Name = cols[j].FieldName
				}
			}

			return stmtType, cols, nil
		default:
			return 0, nil, &ProtocolError{Message: fmt.Sprintf("unknown info item %d", tag)}
		}
	}
}

func (p *wireProtocol) executeStatement(transHandle, stmtHandle int32, args []any) error {
	var blr, values []byte
	var err error

	if len(args) > 0 {
		blr, values, err = paramsToBlr(args)

		if err != nil {
			return err
		}
	}

	buf := xdrInt32(nil, opExecute)
	buf = xdrInt32(buf, stmtHandle)
	buf = xdrInt32(buf, transHandle)
	buf = xdrBytes(buf, blr)
	buf = xdrInt32(buf, 0) // message number

	if len(args) > 0 {
		buf = xdrInt32(buf, 1)
		buf = append(buf, values...)
	} else {
		buf = xdrInt32(buf, 0)
	}

	if err := p.send(buf); err != nil {
		return err
	}

	_, _, _, err = p.readResponse()

	return err
}

const (
	dsqlClose = 1
	dsqlDrop  = 2
)

func (p *wireProtocol) freeStatement(stmtHandle int32, action int32) error {
	buf := xdrInt32(nil, opFreeStatement)
	buf = xdrInt32(buf, stmtHandle)
	buf = xdrInt32(buf, action)

	if err := p.send(buf); err != nil {
		return err
	}

	_, _, _, err := p.readResponse()

	return err
}

// outputBlr describes the result message so the server packs rows the way
// the fetch path reads them.
func outputBlr(cols []ColumnDescriptor) ([]byte, error) {
	count := len(cols) * 2

	blr := []byte{blrVersion5, blrBegin, blrMessage, 0, byte(count), byte(count >> 8)}

	for _, d := range cols {
		switch d.TypeCode {
		case sqlTypeVarying:
			blr = append(blr, blrVarying, byte(d.Length), byte(d.Length>>8))
		case sqlTypeText:
			blr = append(blr, blrText, byte(d.Length), byte(d.Length>>8))
		case sqlTypeShort:
			blr = append(blr, blrShort, byte(int8(d.Scale)))
		case sqlTypeLong:
			blr = append(blr, blrLong, byte(int8(d.Scale)))
		case sqlTypeInt64:
			blr = append(blr, blrInt64, byte(int8(d.Scale)))
		case sqlTypeInt128:
			blr = append(blr, blrInt128, byte(int8(d.Scale)))
		case sqlTypeFloat:
			blr = append(blr, blrFloat)
		case sqlTypeDouble, sqlTypeDFloat:
			blr = append(blr, blrDouble)
		case sqlTypeDate:
			blr = append(blr, blrDate)
		case sqlTypeTime:
			blr = append(blr, blrTime)
		case sqlTypeTimestamp:
			blr = append(blr, blrTimestamp)
		case sqlTypeTimeTZ:
			blr = append(blr, blrTimeTZ)
		case sqlTypeTimestampTZ:
			blr = append(blr, blrTimestampTZ)
		case sqlTypeDec16:
			blr = append(blr, blrDec64)
		case sqlTypeDec34:
			blr = append(blr, blrDec128)
		case sqlTypeBoolean:
			blr = append(blr, blrBool)
		case sqlTypeBlob, sqlTypeQuad:
			blr = append(blr, blrQuad, 0)
		default:
			return nil, &CodecError{Message: fmt.Sprintf("unknown result type code %d", d.TypeCode)}
		}

		blr = append(blr, blrShort, 0)
	}

	return append(blr, blrEnd, blrEoc), nil
}

const fetchBatchSize = 400

const fetchStatusNoMore = 100

// fetchRows requests a batch of rows and decodes them against the prepared
// descriptors. eof reports cursor exhaustion.
func (p *wireProtocol) fetchRows(stmtHandle, transHandle int32, cols []ColumnDescriptor) (rows [][]Value, eof bool, err error) {
	blr, err := outputBlr(cols)

	if err != nil {
		return nil, false, err
	}

	buf := xdrInt32(nil, opFetch)
	buf = xdrInt32(buf, stmtHandle)
	buf = xdrBytes(buf, blr)
	buf = xdrInt32(buf, 0) // message number
	buf = xdrInt32(buf, fetchBatchSize)

	if err := p.send(buf); err != nil {
		return nil, false, err
	}

	for {
		op, err := p.readOpCode()

		if err != nil {
			return nil, false, err
		}

		if op == opResponse {
			if _, _, _, err := p.parseResponse(op); err != nil {
				return nil, false, err
			}

			return nil, false, &ProtocolError{Message: "unexpected response to fetch"}
		}

		if op != opFetchResponse {
			return nil, false, &ProtocolError{Message: fmt.Sprintf("expected fetch response, got op %d", op)}
		}

		status, err := p.readInt32()

		if err != nil {
			return nil, false, err
		}

		count, err := p.readInt32()

		if err != nil {
			return nil, false, err
		}

		if count == 0 {
			eof = status == fetchStatusNoMore

			break
		}

		row, err := p.readRow(cols)

		if err != nil {
			return nil, false, err
		}

		rows = append(rows, row)
	}

	// Blob contents are fetched only after the whole batch is consumed; a
	// blob request in the middle of the fetch stream would interleave with
	// the remaining fetch responses.
	for _, row := range rows {
		if err := p.resolveBlobs(transHandle, cols, row); err != nil {
			return nil, false, err
		}
	}

	return rows, eof, nil
}

func (p *wireProtocol) resolveBlobs(transHandle int32, cols []ColumnDescriptor, row []Value) error {
	for i := range row {
		if row[i].Kind() != KindBlobID {
			continue
		}

		id, err := row[i].Bytes()

		if err != nil {
			return err
		}

		content, err := p.readBlob(transHandle, id)

		if err != nil {
			return err
		}

		if cols[i].SubType == 1 {
			row[i] = TextValue(string(content))
		} else {
			row[i] = BytesValue(content)
		}
	}

	return nil
}

// readRow consumes one packed row: a null bitmap, then the raw bytes of
// every non-null column. Blob columns decode to their id reference here.
func (p *wireProtocol) readRow(cols []ColumnDescriptor) ([]Value, error) {
	bitmapLen := (len(cols) + 7) / 8
	bitmap, err := p.channel.read(bitmapLen + (4-bitmapLen%4)%4)

	if err != nil {
		return nil, err
	}

	row := make([]Value, len(cols))

	for i := range cols {
		d := &cols[i]

		if bitmap[i/8]&(1<<(i%8)) != 0 {
			row[i] = NullValue()

			continue
		}

		var raw []byte

		if n := d.ioLength(); n < 0 {
			raw, err = p.readBytes()
		} else {
			padded, rerr := p.channel.read(n + (4-n%4)%4)

			if rerr != nil {
				return nil, rerr
			}

			raw = padded[:n]
		}

		if err != nil {
			return nil, err
		}

		value, err := decodeValue(raw, d, p.protocolVersion)

		if err != nil {
			return nil, err
		}

		row[i] = value
	}

	return row, nil
}

// rowsAffected asks the server for the statement's record counts.
func (p *wireProtocol) rowsAffected(stmtHandle int32) (int64, error) {
	buf := xdrInt32(nil, opInfoSQL)
	buf = xdrInt32(buf, stmtHandle)
	buf = xdrInt32(buf, 0)
	buf = xdrBytes(buf, []byte{iscInfoSQLRecords})
	buf = xdrInt32(buf, channelBufferSize)

	if err := p.send(buf); err != nil {
		return 0, err
	}

	_, _, info, err := p.readResponse()

	if err != nil {
		return 0, err
	}

	if len(info) < 3 || info[0] != iscInfoSQLRecords {
		return 0, nil
	}

	inner := info[3:]
	var total int64

	for len(inner) >= 3 {
		tag := inner[0]

		if tag == iscInfoEnd {
			break
		}

		n := int(binary.LittleEndian.Uint16(inner[1:3]))

		if len(inner) < 3+n {
			break
		}

		count := int64(0)

		for j := 3 + n - 1; j >= 3; j-- {
			count = count<<8 | int64(inner[j])
		}

		switch tag {
		case iscInfoReqInsertCount, iscInfoReqUpdateCount, iscInfoReqDeleteCount:
			total += count
		}

		inner = inner[3+n:]
	}

	return total, nil
}

// --- blobs -----------------------------------------------------------------

const blobEOF = 2

func (p *wireProtocol) readBlob(transHandle int32, blobID []byte) ([]byte, error) {
	buf := xdrInt32(nil, opOpenBlob)
	buf = xdrInt32(buf, transHandle)
	buf = append(buf, blobID...)

	if err := p.send(buf); err != nil {
		return nil, err
	}

	blobHandle, _, _, err := p.readResponse()

	if err != nil {
		return nil, err
	}

	var content []byte

	for {
		buf = xdrInt32(nil, opGetSegment)
		buf = xdrInt32(buf, blobHandle)
		buf = xdrInt32(buf, blobSegmentSize)
		buf = xdrInt32(buf, 0)

		if err := p.send(buf); err != nil {
			return nil, err
		}

		status, _, segments, err := p.readResponse()

		if err != nil {
			return nil, err
		}

		// Segments arrive length-prefixed inside the buffer.
		for len(segments) >= 2 {
			n := int(binary.LittleEndian.Uint16(segments[:2]))

			if len(segments) < 2+n {
				return nil, &ProtocolError{Message: "malformed blob segment"}
			}

			content = append(content, segments[2:2+n]...)
			segments = segments[2+n:]
		}

		if status == blobEOF {
			break
		}
	}

	buf = xdrInt32(nil, opCloseBlob)
	buf = xdrInt32(buf, blobHandle)

	if err := p.send(buf); err != nil {
		return nil, err
	}

	if _, _, _, err := p.readResponse(); err != nil {
		return nil, err
	}

	return content, nil
}

// createBlob writes data as a new blob under the transaction and returns
// its 8-byte id.
func (p *wireProtocol) createBlob(transHandle int32, data []byte) ([]byte, error) {
	buf := xdrInt32(nil, opCreateBlob2)
	buf = xdrBytes(buf, nil)
	buf = xdrInt32(buf, transHandle)
	buf = xdrInt32(buf, 0)
	buf = xdrInt32(buf, 0)

	if err := p.send(buf); err != nil {
		return nil, err
	}

	blobHandle, oid, _, err := p.readResponse()

	if err != nil {
		return nil, err
	}

	for off := 0; off < len(data); off += blobSegmentSize {
		end := min(off+blobSegmentSize, len(data))

		buf = xdrInt32(nil, opPutSegment)
		buf = xdrInt32(buf, blobHandle)
		buf = xdrBytes(buf, data[off:end])

		if err := p.send(buf); err != nil {
			return nil, err
		}

		if _, _, _, err := p.readResponse(); err != nil {
			return nil, err
		}
	}

	buf = xdrInt32(nil, opCloseBlob)
	buf = xdrInt32(buf, blobHandle)

	if err := p.send(buf); err != nil {
		return nil, err
	}

	if _, _, _, err := p.readResponse(); err != nil {
		return nil, err
	}

	return oid, nil
}

// --- events ----------------------------------------------------------------

func (p *wireProtocol) queueEvents(epb []byte, eventID int32) error {
	buf := xdrInt32(nil, opQueEvents)
	buf = xdrInt32(buf, p.dbHandle)
	buf = xdrBytes(buf, epb)
	buf = xdrInt32(buf, 0) // ast routine
	buf = xdrInt32(buf, 0) // ast argument
	buf = xdrInt32(buf, eventID)

	if err := p.send(buf); err != nil {
		return err
	}

	_, _, _, err := p.readResponse()

	return err
}

func (p *wireProtocol) cancelEvents(eventID int32) error {
	buf := xdrInt32(nil, opCancelEvents)
	buf = xdrInt32(buf, p.dbHandle)
	buf = xdrInt32(buf, eventID)

	if err := p.send(buf); err != nil {
		return err
	}

	_, _, _, err := p.readResponse()

	return err
}

// connectAuxiliary asks the server for the asynchronous event port and
// opens a second channel to it. Event pushes arrive only on this channel.
func (p *wireProtocol) connectAuxiliary() (*wireChannel, error) {
	buf := xdrInt32(nil, opConnectRequest)
	buf = xdrInt32(buf, pReqAsync)
	buf = xdrInt32(buf, p.dbHandle)
	buf = xdrInt32(buf, 0) // partner identification

	if err := p.send(buf); err != nil {
		return nil, err
	}

	_, _, addr, err := p.readResponse()

	if err != nil {
		return nil, err
	}

	if len(addr) < 4 {
		return nil, &ProtocolError{Message: "malformed auxiliary address"}
	}

	// sockaddr_in: family, then the port in network order. The address part
	// is routinely a wildcard, so dial the primary host instead.
	port := binary.BigEndian.Uint16(addr[2:4])

	return newWireChannel(fmt.Sprintf("%s:%d", p.dsn.Host, port), connectTimeout)
}

// readEvent blocks on the auxiliary channel until the server pushes an
// event notification, returning the updated parameter block and the
// registration id it belongs to.
func readEvent(c *wireChannel) (epb []byte, eventID int32, err error) {
	for {
		op, err := readInt32c(c)

		if err != nil {
			return nil, 0, err
		}

		if op == opDummy {
			continue
		}

		if op != opEvent {
			return nil, 0, &ProtocolError{Message: fmt.Sprintf("expected event push, got op %d", op)}
		}

		if _, err = readInt32c(c); err != nil { // database handle
			return nil, 0, err
		}

		if epb, err = readBytesc(c); err != nil {
			return nil, 0, err
		}

		if _, err = c.read(8); err != nil { // ast info
			return nil, 0, err
		}

		if eventID, err = readInt32c(c); err != nil {
			return nil, 0, err
		}

		return epb, eventID, nil
	}
}

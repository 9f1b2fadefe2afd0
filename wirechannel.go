package firebird

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"
)

// Buffer size matching the server's MAX_DATA_HW.
const channelBufferSize = 32 * 1024

const connectTimeout = 30 * time.Second

// wireChannel owns the raw stream and exposes message-oriented reads and
// writes. Optional wire encryption and compression are layered as reader
// and writer composition: the cipher sits next to the socket, so outbound
// data is compressed before it is encrypted and inbound data is decrypted
// before it is decompressed. The server expects exactly that order.
type wireChannel struct {
	conn net.Conn
	bufr *bufio.Reader
	bufw *bufio.Writer

	src io.Reader // bufr, or cipherReader over bufr
	dst io.Writer // bufw, or cipherWriter over bufw

	inf *inflater
	def *deflater

	compressed bool
}

func newWireChannel(addr string, timeout time.Duration) (*wireChannel, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)

	if err != nil {
		return nil, &ConnectError{Message: "dial " + addr, Err: err}
	}

	// Protocol messages are small and latency sensitive.
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	return newWireChannelConn(conn), nil
}

func newWireChannelConn(conn net.Conn) *wireChannel {
	c := &wireChannel{
		conn: conn,
		bufr: bufio.NewReaderSize(conn, channelBufferSize),
		bufw: bufio.NewWriterSize(conn, channelBufferSize),
	}

	c.src = c.bufr
	c.dst = c.bufw

	return c
}

// enableCompression switches both directions onto shared zlib streams. Must
// be called before any compressed data is exchanged.
func (c *wireChannel) enableCompression() {
	c.inf = newInflater(&sourceProxy{c})
	c.def = newDeflater(&sinkProxy{c})
	c.compressed = true
}

func (c *wireChannel) isCompressed() bool {
	return c.compressed
}

// setCipher installs the negotiated wire-encryption keystreams. Independent
// streams are keyed for each direction. The compression layer, if present,
// picks the cipher up through its proxy on the next read or write.
func (c *wireChannel) setCipher(plugin string, sessionKey, nonce []byte) error {
	readStream, err := newWireCipher(plugin, sessionKey, nonce)

	if err != nil {
		return err
	}

	writeStream, err := newWireCipher(plugin, sessionKey, nonce)

	if err != nil {
		return err
	}

	c.src = &cipherReader{src: c.bufr, stream: readStream}
	c.dst = &cipherWriter{dst: c.bufw, stream: writeStream}

	return nil
}

// read returns exactly n bytes. Partial frames are retained by the buffered
// reader across calls, and removing consumed bytes is amortized O(1). A
// peer-initiated close surfaces as ErrConnectionClosed, never as a
// zero-length read.
func (c *wireChannel) read(n int) ([]byte, error) {
	buf := make([]byte, n)

	var r io.Reader = c.src

	if c.compressed {
		r = c.inf
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrConnectionClosed
		}

		return nil, err
	}

	return buf, nil
}

func (c *wireChannel) write(p []byte) error {
	var err error

	if c.compressed {
		_, err = c.def.Write(p)
	} else {
		_, err = c.dst.Write(p)
	}

	return err
}

func (c *wireChannel) flush() error {
	if c.compressed {
		if err := c.def.Flush(); err != nil {
			return err
		}
	}

	return c.bufw.Flush()
}

func (c *wireChannel) setReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wireChannel) close() error {
	return c.conn.Close()
}

// sourceProxy and sinkProxy give the long-lived compression streams a view
// of the channel that tracks cipher installation mid-connection.
type sourceProxy struct {
	c *wireChannel
}

func (p *sourceProxy) Read(b []byte) (int, error) {
	return p.c.src.Read(b)
}

type sinkProxy struct {
	c *wireChannel
}

func (p *sinkProxy) Write(b []byte) (int, error) {
	return p.c.dst.Write(b)
}

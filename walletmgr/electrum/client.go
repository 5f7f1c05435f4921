package electrum

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Client is a minimal newline-delimited JSON-RPC connection to one Electrum
// server. No actively-maintained third-party Electrum client library
// appears in the retrieval pack, so this is built directly on the standard
// library's net/tls/encoding-json — see DESIGN.md for why this one ambient
// concern is stdlib rather than a wired dependency. The optional SOCKS5
// proxy support is a hand-rolled CONNECT handshake (RFC 1928's no-auth
// subset) over net.Dial, kept stdlib for the same reason.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Response

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to an Electrum server at addr, optionally via a SOCKS5
// proxy, using TLS unless useTLS is false.
func Dial(ctx context.Context, addr string, useTLS bool, socks5Proxy string) (*Client, error) {
	var conn net.Conn
	var err error

	if socks5Proxy != "" {
		conn, err = dialSOCKS5(ctx, socks5Proxy, addr)
	} else {
		d := net.Dialer{}
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("electrum: dialing %s: %w", addr, err)
	}

	if useTLS {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: hostOnly(addr)})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("electrum: tls handshake: %w", err)
		}
		conn = tlsConn
	}

	c := &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		pending: make(map[uint64]chan Response),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// dialSOCKS5 performs the no-auth subset of RFC 1928's SOCKS5 CONNECT
// handshake through proxyAddr to reach target, then returns the raw
// connection for the caller to optionally wrap in TLS.
func dialSOCKS5(ctx context.Context, proxyAddr, target string) (net.Conn, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("connecting to socks5 proxy: %w", err)
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("parsing target address: %w", err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		conn.Close()
		return nil, fmt.Errorf("parsing target port: %w", err)
	}

	// Greeting: version 5, one method, no authentication required.
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		conn.Close()
		return nil, err
	}
	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		conn.Close()
		return nil, err
	}
	if reply[0] != 0x05 || reply[1] != 0x00 {
		conn.Close()
		return nil, fmt.Errorf("socks5 proxy rejected no-auth method")
	}

	req := []byte{0x05, 0x01, 0x00, 0x03, byte(len(host))}
	req = append(req, host...)
	req = append(req, byte(port>>8), byte(port))
	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		conn.Close()
		return nil, err
	}
	if header[1] != 0x00 {
		conn.Close()
		return nil, fmt.Errorf("socks5 proxy CONNECT failed with code %d", header[1])
	}

	var addrLen int
	switch header[3] {
	case 0x01:
		addrLen = 4
	case 0x03:
		lenByte := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenByte); err != nil {
			conn.Close()
			return nil, err
		}
		addrLen = int(lenByte[0])
	case 0x04:
		addrLen = 16
	default:
		conn.Close()
		return nil, fmt.Errorf("socks5 proxy returned unknown address type")
	}
	if _, err := io.ReadFull(conn, make([]byte, addrLen+2)); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (c *Client) readLoop() {
	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			c.Close()
			return
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.Method != "" {
			// Unsolicited subscription notification; this client does
			// not expose a subscription API, so these are dropped.
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// Call issues one JSON-RPC request and waits for its matching response.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	id := atomic.AddUint64(&c.nextID, 1)
	req := Request{ID: id, Method: method, Params: params}

	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')

	ch := make(chan Response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	if _, err := c.writer.Write(raw); err != nil {
		return fmt.Errorf("electrum: writing request: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("electrum: flushing request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		return fmt.Errorf("electrum: connection closed")
	case <-time.After(30 * time.Second):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("electrum: timed out waiting for %s response", method)
	}
}

// GetHistory calls blockchain.scripthash.get_history.
func (c *Client) GetHistory(ctx context.Context, scriptHashHex string) ([]ScriptHashHistoryEntry, error) {
	var out []ScriptHashHistoryEntry
	err := c.Call(ctx, "blockchain.scripthash.get_history", []interface{}{scriptHashHex}, &out)
	return out, err
}

// ListUnspent calls blockchain.scripthash.listunspent.
func (c *Client) ListUnspent(ctx context.Context, scriptHashHex string) ([]UnspentEntry, error) {
	var out []UnspentEntry
	err := c.Call(ctx, "blockchain.scripthash.listunspent", []interface{}{scriptHashHex}, &out)
	return out, err
}

// SubscribeHeaders calls blockchain.headers.subscribe, returning the
// current tip (ongoing notifications are not surfaced by this client).
func (c *Client) SubscribeHeaders(ctx context.Context) (*HeaderSubscription, error) {
	var out HeaderSubscription
	err := c.Call(ctx, "blockchain.headers.subscribe", nil, &out)
	return &out, err
}

// Close shuts down the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

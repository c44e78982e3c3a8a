// Package sdk provides the client-side library for the Celerix table store and
// generic helpers that move entity records in and out of any store.
// It supports both remote connections via TCP/TLS and local embedded mode.
package sdk

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Client is a remote client for the Celerix table store.
// It implements the Store interface.
type Client struct {
	addr   string
	useTLS bool
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex // Protects concurrent access to the connection
}

// Connect establishes a TLS-encrypted connection to a remote store daemon.
// If CELERIX_DISABLE_TLS is set to "true", it falls back to plain TCP.
func Connect(addr string) (*Client, error) {
	return Dial(addr, os.Getenv("CELERIX_DISABLE_TLS") != "true")
}

// Dial connects to a remote store daemon, using TLS when useTLS is set.
func Dial(addr string, useTLS bool) (*Client, error) {
	c := &Client{addr: addr, useTLS: useTLS}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	if c.useTLS {
		config := &tls.Config{
			InsecureSkipVerify: true, // We use self-signed certs for internal traffic
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	} else {
		conn, err = dialer.Dial("tcp", c.addr)
	}

	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// sendAndReceive sends one command line and returns the payload after "OK".
func (c *Client) sendAndReceive(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	var resp string

	// Try up to 3 times with backoff
	for i := 0; i < 3; i++ {
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		c.conn.SetDeadline(time.Now().Add(30 * time.Second))

		_, err = fmt.Fprint(c.conn, cmd+"\n")
		if err == nil {
			resp, err = c.reader.ReadString('\n')
			if err == nil {
				resp = strings.TrimSpace(resp)
				if msg, ok := strings.CutPrefix(resp, "ERR"); ok {
					return "", errorFromWire(strings.TrimSpace(msg))
				}
				payload, _ := strings.CutPrefix(resp, "OK")
				return strings.TrimSpace(payload), nil
			}
		}

		slog.Warn("sdk.request_failed", "attempt", i+1, "addr", c.addr, "error", err)

		// Force a reconnect on the next iteration
		if closeErr := c.reconnect(); closeErr != nil {
			slog.Warn("sdk.reconnect_failed", "addr", c.addr, "error", closeErr)
		}

		time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
	}

	return "", fmt.Errorf("failed after 3 attempts. last error: %v", err)
}

// errorFromWire restores the engine sentinel errors from an ERR reply.
func errorFromWire(msg string) error {
	for _, sentinel := range []error{ErrRowNotFound, ErrTableNotFound, ErrInvalidTable, ErrInvalidID} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()); ok {
			return fmt.Errorf("%w%s", sentinel, rest)
		}
	}
	return errors.New(msg)
}

func decode(payload string, v any) error {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	return dec.Decode(v)
}

func (c *Client) Get(table string, id int64) (map[string]any, error) {
	resp, err := c.sendAndReceive(fmt.Sprintf("GET %s %d", table, id))
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := decode(resp, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *Client) List(table string) ([]map[string]any, error) {
	resp, err := c.sendAndReceive(fmt.Sprintf("LIST %s", table))
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := decode(resp, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) Save(table string, id int64, row map[string]any) (int64, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return 0, err
	}
	if bytes.ContainsAny(data, "\r\n") {
		return 0, fmt.Errorf("row for %s cannot be sent on a single line", table)
	}
	resp, err := c.sendAndReceive(fmt.Sprintf("SAVE %s %d %s", table, id, data))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(resp, 10, 64)
}

func (c *Client) Delete(table string, id int64) error {
	_, err := c.sendAndReceive(fmt.Sprintf("DEL %s %d", table, id))
	return err
}

func (c *Client) Tables() ([]string, error) {
	resp, err := c.sendAndReceive("TABLES")
	if err != nil {
		return nil, err
	}
	var list []string
	err = json.Unmarshal([]byte(resp), &list)
	return list, err
}

func (c *Client) DumpTable(table string) (map[int64]map[string]any, error) {
	resp, err := c.sendAndReceive(fmt.Sprintf("DUMP %s", table))
	if err != nil {
		return nil, err
	}
	var byID map[string]map[string]any
	if err := decode(resp, &byID); err != nil {
		return nil, err
	}
	rows := make(map[int64]map[string]any, len(byID))
	for key, row := range byID {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("dump %s: bad row id %q", table, key)
		}
		rows[id] = row
	}
	return rows, nil
}

// Ping checks that the daemon answers.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.reconnect(); err != nil {
			return err
		}
	}
	c.conn.SetDeadline(time.Now().Add(10 * time.Second))
	if _, err := fmt.Fprintln(c.conn, "PING"); err != nil {
		return err
	}
	resp, err := c.reader.ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp) != "PONG" {
		return fmt.Errorf("unexpected reply %q", strings.TrimSpace(resp))
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Package server exposes a table store over a line-based TCP protocol.
//
// Commands, one per line:
//
//	PING
//	TABLES
//	GET <table> <id>
//	LIST <table>
//	DUMP <table>
//	SAVE <table> <id> <json row>
//	DEL <table> <id>
//	QUIT
//
// Replies are "OK [payload]" or "ERR <message>"; PING answers "PONG".
package server

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/celerix-dev/celerix-web/pkg/sdk"
)

// maxConns bounds the number of connections served at once.
const maxConns = 100

const (
	defaultIdleTimeout  = 5 * time.Minute
	defaultWriteTimeout = 30 * time.Second
)

type Router struct {
	store  sdk.Store
	cert   *tls.Certificate
	logger *slog.Logger

	// idleTimeout bounds the wait for the next command, writeTimeout the
	// time to send one reply. Both restart for every command.
	idleTimeout  time.Duration
	writeTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewRouter(s sdk.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:        s,
		logger:       logger,
		idleTimeout:  defaultIdleTimeout,
		writeTimeout: defaultWriteTimeout,
	}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Addr returns the listening address, or nil before Listen.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen starts the TCP server and blocks until Stop is called.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		listener.Close()
		return nil
	}
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	semaphore := make(chan struct{}, maxConns)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if r.isClosed() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			r.logger.Warn("server.accept_failed", "error", err)
			continue
		}

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			r.HandleConnection(c)
		}(conn)
	}
}

// Stop closes the listener; Listen returns nil afterwards.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.listener == nil {
		return nil
	}
	return r.listener.Close()
}

func (r *Router) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// HandleConnection serves commands from conn until QUIT, EOF or an idle
// timeout, then closes it.
func (r *Router) HandleConnection(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(r.idleTimeout))

		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.logger.Debug("server.connection_closed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
		if !r.dispatch(conn, line) {
			return
		}
	}
}

// dispatch runs one command and reports whether the connection stays open.
func (r *Router) dispatch(w io.Writer, line string) bool {
	parts := strings.SplitN(line, " ", 4)
	command := strings.ToUpper(parts[0])

	switch command {
	case "PING":
		fmt.Fprintln(w, "PONG")

	case "QUIT":
		return false

	case "TABLES":
		list, err := r.store.Tables()
		reply(w, list, err)

	case "GET":
		if len(parts) != 3 {
			usage(w, "GET <table> <id>")
			break
		}
		id, err := parseID(parts[2])
		if err != nil {
			replyErr(w, err)
			break
		}
		row, err := r.store.Get(parts[1], id)
		reply(w, row, err)

	case "LIST":
		if len(parts) != 2 {
			usage(w, "LIST <table>")
			break
		}
		rows, err := r.store.List(parts[1])
		reply(w, rows, err)

	case "DUMP":
		if len(parts) != 2 {
			usage(w, "DUMP <table>")
			break
		}
		rows, err := r.store.DumpTable(parts[1])
		byID := make(map[string]map[string]any, len(rows))
		for id, row := range rows {
			byID[strconv.FormatInt(id, 10)] = row
		}
		reply(w, byID, err)

	case "SAVE":
		if len(parts) != 4 {
			usage(w, "SAVE <table> <id> <json>")
			break
		}
		id, err := parseID(parts[2])
		if err != nil {
			replyErr(w, err)
			break
		}
		var row map[string]any
		dec := json.NewDecoder(strings.NewReader(parts[3]))
		dec.UseNumber()
		if err := dec.Decode(&row); err != nil {
			fmt.Fprintln(w, "ERR invalid json row")
			break
		}
		saved, err := r.store.Save(parts[1], id, row)
		if err != nil {
			replyErr(w, err)
			break
		}
		fmt.Fprintln(w, "OK", saved)

	case "DEL":
		if len(parts) != 3 {
			usage(w, "DEL <table> <id>")
			break
		}
		id, err := parseID(parts[2])
		if err != nil {
			replyErr(w, err)
			break
		}
		if err := r.store.Delete(parts[1], id); err != nil {
			replyErr(w, err)
			break
		}
		fmt.Fprintln(w, "OK")

	default:
		fmt.Fprintln(w, "ERR unknown command", command)
	}
	return true
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %s", sdk.ErrInvalidID, s)
	}
	return id, nil
}

func usage(w io.Writer, syntax string) {
	fmt.Fprintln(w, "ERR usage:", syntax)
}

func replyErr(w io.Writer, err error) {
	fmt.Fprintln(w, "ERR", err)
}

// reply sends the value back as JSON
func reply(w io.Writer, v any, err error) {
	if err != nil {
		replyErr(w, err)
		return
	}
	res, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(w, "ERR internal error")
		return
	}
	fmt.Fprintln(w, "OK", string(res))
}

package link

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	// acceptTimeout frees the port again if the browser never calls back.
	acceptTimeout = 5 * time.Minute
	readTimeout   = 10 * time.Second
)

// ListenLocalHTTPRequests arms the loopback callback listener. It serves
// exactly one request and exits; while one listener is armed, further calls
// are dropped.
func (m *Manager) ListenLocalHTTPRequests() {
	if !m.listening.CompareAndSwap(false, true) {
		m.log.Debug("dropping listen request: the listener is already armed")
		return
	}
	go func() {
		defer m.listening.Store(false)
		if err := m.serveOnce(); err != nil {
			m.platform.Error("cannot serve the account linking callback", err)
		}
	}()
}

// serveOnce accepts one connection, reads the request line, answers with
// the plain-text verdict, and closes.
func (m *Manager) serveOnce() error {
	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.cfg.ListenAddr, err)
	}
	defer ln.Close()

	if tcp, ok := ln.(*net.TCPListener); ok {
		tcp.SetDeadline(time.Now().Add(acceptTimeout))
	}

	conn, err := ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			m.log.Debug("account linking callback timed out")
			return nil
		}
		return fmt.Errorf("accept: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(readTimeout))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read request line: %w", err)
	}

	body := m.HandleHTTPRequest(parseRequestLine(line))
	_, err = fmt.Fprintf(conn,
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s",
		len(body), body)
	if err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// parseRequestLine extracts the percent-decoded query parameters from an
// HTTP request line such as "GET /?action=link&token=... HTTP/1.1".
func parseRequestLine(line string) map[string]string {
	params := make(map[string]string)

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return params
	}

	u, err := url.ParseRequestURI(fields[1])
	if err != nil {
		return params
	}
	for key, values := range u.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

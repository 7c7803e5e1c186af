// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketOptions configures a bridge connection
type WebSocketOptions struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
	Timeout       time.Duration // handshake timeout, default 10s
}

// WebSocket is a Transport over a WebSocket bridge. Each binary message
// carries raw frame bytes.
type WebSocket struct {
	conn *websocket.Conn
	url  string
	rx   *rxBuffer

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	readerWG  sync.WaitGroup
}

// DialWebSocket connects to a bridge with optional HTTP Basic auth
func DialWebSocket(ctx context.Context, opts WebSocketOptions) (*WebSocket, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, opts.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocket(conn, opts.URL), nil
}

func newWebSocket(conn *websocket.Conn, u string) *WebSocket {
	w := &WebSocket{
		conn: conn,
		url:  u,
		rx:   newRxBuffer(),
		done: make(chan struct{}),
	}
	w.readerWG.Add(1)
	go w.readerLoop()
	return w
}

func (w *WebSocket) readerLoop() {
	defer w.readerWG.Done()
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				w.rx.fail(ErrClosed)
			default:
				w.rx.fail(fmt.Errorf("websocket read: %w", err))
			}
			return
		}
		// Only binary messages carry frames
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.rx.feed(data)
	}
}

// URL returns the bridge address
func (w *WebSocket) URL() string {
	return w.url
}

// Read copies a buffered frame into p without blocking
func (w *WebSocket) Read(p []byte) (int, error) {
	return w.rx.read(p)
}

// Write sends p as one binary message
func (w *WebSocket) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	select {
	case <-w.done:
		return 0, ErrClosed
	default:
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WaitReadable waits for a complete frame to arrive
func (w *WebSocket) WaitReadable(timeout time.Duration) (bool, error) {
	return w.rx.wait(timeout)
}

// ResetInput discards buffered input
func (w *WebSocket) ResetInput() error {
	w.rx.reset()
	return nil
}

// Close sends a close frame and tears down the connection
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.conn.Close()
		w.readerWG.Wait()
	})
	return err
}

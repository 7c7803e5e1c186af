// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
)

// FrameConn delivers whole inbound frames and sends whole outbound frames
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
}

// Serve answers frames from conn until ctx is cancelled or the connection
// fails. Cancellation closes conn.
func Serve(ctx context.Context, conn FrameConn, d *Dispatcher) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		resp := d.Handle(frame)
		if resp == nil {
			continue
		}
		if err := conn.WriteFrame(resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to send response: %w", err)
		}
	}
}

// StreamConn frames a byte stream such as a serial port by synchronizing
// on the magic bytes
type StreamConn struct {
	rw      io.ReadWriteCloser
	decoder *lnbproto.Decoder
	queue   [][]byte
	buf     []byte
}

// NewStreamConn wraps rw
func NewStreamConn(rw io.ReadWriteCloser) *StreamConn {
	return &StreamConn{
		rw:      rw,
		decoder: lnbproto.NewDecoder(),
		buf:     make([]byte, 64),
	}
}

// ReadFrame blocks until a full frame has been received
func (s *StreamConn) ReadFrame() ([]byte, error) {
	for len(s.queue) == 0 {
		n, err := s.rw.Read(s.buf)
		if n > 0 {
			s.queue = append(s.queue, s.decoder.Decode(s.buf[:n])...)
		}
		if err != nil && len(s.queue) == 0 {
			return nil, err
		}
	}
	frame := s.queue[0]
	s.queue = s.queue[1:]
	return frame, nil
}

// WriteFrame sends frame as-is
func (s *StreamConn) WriteFrame(frame []byte) error {
	n, err := s.rw.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

// Close closes the underlying stream
func (s *StreamConn) Close() error {
	return s.rw.Close()
}

// Skipped returns the bytes discarded while hunting for frame starts
func (s *StreamConn) Skipped() int {
	return s.decoder.Skipped()
}

// WebSocketConn treats each binary message as one frame. Unlike a stream,
// message boundaries are kept, so short or long frames reach the
// dispatcher's length check.
type WebSocketConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebSocketConn wraps an upgraded connection
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: conn}
}

// ReadFrame returns the next binary message
func (w *WebSocketConn) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// WriteFrame sends frame as one binary message
func (w *WebSocketConn) WriteFrame(frame []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Close closes the connection
func (w *WebSocketConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.conn.Close()
	})
	return err
}

// Credentials enables HTTP Basic auth on the WebSocket endpoint
type Credentials struct {
	Username string
	Password string
}

// WebSocketHandler upgrades requests and serves each connection against d
// until ctx is done. creds may be nil to allow anonymous clients.
func WebSocketHandler(ctx context.Context, d *Dispatcher, creds *Credentials) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64,
		WriteBufferSize: 64,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if creds != nil {
			user, pass, ok := r.BasicAuth()
			if !ok || user != creds.Username || pass != creds.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="lnb"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("websocket upgrade failed: %v", err)
			return
		}
		log.Infof("client connected from %s", r.RemoteAddr)

		wsc := NewWebSocketConn(conn)
		defer wsc.Close()

		err = Serve(ctx, wsc, d)
		if err != nil && !isNormalClose(err) {
			log.Warnf("client %s: %v", r.RemoteAddr, err)
		}
		log.Infof("client %s disconnected", r.RemoteAddr)
	})
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}

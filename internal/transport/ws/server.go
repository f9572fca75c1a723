// Package ws bridges websocket clients onto the room loop channels.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"avatarkit.gg/internal/protocol"
	"avatarkit.gg/internal/sim/fitting"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
	outBufferSize    = 64
)

type Server struct {
	room *fitting.Room
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(room *fitting.Room, logger *log.Logger) *Server {
	return &Server{
		room: room,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler upgrades the connection, performs the HELLO/WELCOME handshake,
// then pumps frames between the socket and the room until either side quits.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Printf("ws: upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		sessionID, out, err := s.handshake(conn)
		if err != nil {
			s.log.Printf("ws: handshake failed: %v", err)
			return
		}
		defer func() { s.room.Leave() <- sessionID }()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine: the room loop owns out, we own the socket.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-out:
					if !ok {
						return
					}
					conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		s.readLoop(ctx, conn, sessionID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, chan []byte, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(raw, &hello); err != nil {
		s.closePolicy(conn, "malformed hello")
		return "", nil, err
	}
	if hello.Type != protocol.TypeHello {
		s.closePolicy(conn, "expected HELLO")
		return "", nil, errExpectedHello
	}
	if hello.ProtocolVersion != protocol.Version {
		s.closePolicy(conn, "unsupported protocol version")
		return "", nil, errBadVersion
	}

	out := make(chan []byte, outBufferSize)
	resp := make(chan fitting.JoinResponse, 1)
	s.room.Join() <- fitting.JoinRequest{
		ClientName:  hello.ClientName,
		ResumeToken: hello.ResumeToken,
		Out:         out,
		Resp:        resp,
	}
	jr := <-resp

	if err := s.writeJSON(conn, jr.Welcome); err != nil {
		return "", nil, err
	}
	for _, cat := range jr.Catalogs {
		if err := s.writeJSON(conn, cat); err != nil {
			return "", nil, err
		}
	}
	return jr.Welcome.SessionID, out, nil
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		base, err := protocol.DecodeBase(raw)
		if err != nil || base.Type != protocol.TypeCmd {
			continue
		}
		var cmd protocol.CmdMsg
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		// Version mismatches go through; the room answers with a proper ACK.

		select {
		case s.room.Inbox() <- fitting.CmdEnvelope{SessionID: sessionID, Cmd: cmd}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) closePolicy(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteMessage(websocket.CloseMessage, msg)
}

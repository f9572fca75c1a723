package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"avatarkit.gg/internal/protocol"
	"avatarkit.gg/internal/sim/catalogs"
	"avatarkit.gg/internal/sim/fitting"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above test directory")
		}
		dir = parent
	}
}

func startTestServer(t *testing.T) (*httptest.Server, *fitting.Room, func()) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join(findRepoRoot(t), "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	room := fitting.New(fitting.RoomConfig{
		ID:                 "ws-test",
		TickRateHz:         100,
		DefaultEaseTicks:   4,
		AutoRetryStored:    true,
		SnapshotEveryTicks: 100000,
		ResumeWindowTicks:  10000,
		RateCmdWindowTicks: 1000,
		RateCmdMax:         1000,
	}, cats, log.New(os.Stderr, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	go room.Run(ctx)

	ts := httptest.NewServer(NewServer(room, log.New(os.Stderr, "", 0)).Handler())
	return ts, room, func() {
		ts.Close()
		cancel()
	}
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return raw
}

func TestHandshakeDeliversWelcomeAndCatalogs(t *testing.T) {
	ts, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, ts)
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "ws-test-client",
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(readMsg(t, conn), &welcome); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		t.Fatalf("expected WELCOME, got %q", welcome.Type)
	}
	if welcome.SessionID == "" || welcome.ResumeToken == "" {
		t.Fatalf("welcome missing session identity: %+v", welcome)
	}
	if welcome.RoomParams.RoomID != "ws-test" {
		t.Fatalf("unexpected room id %q", welcome.RoomParams.RoomID)
	}

	names := map[string]bool{}
	for i := 0; i < 3; i++ {
		var cat protocol.CatalogMsg
		if err := json.Unmarshal(readMsg(t, conn), &cat); err != nil {
			t.Fatalf("unmarshal catalog %d: %v", i, err)
		}
		if cat.Type != protocol.TypeCatalog {
			t.Fatalf("expected CATALOG, got %q", cat.Type)
		}
		names[cat.Name] = true
	}
	for _, want := range []string{"locations", "accessories", "outfits"} {
		if !names[want] {
			t.Fatalf("catalog %q not delivered, got %v", want, names)
		}
	}
}

func TestCommandRoundTripOverSocket(t *testing.T) {
	ts, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, ts)
	defer conn.Close()

	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
	}); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	for i := 0; i < 4; i++ { // welcome + three catalogs
		readMsg(t, conn)
	}

	if err := conn.WriteJSON(protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		CmdID:           "c1",
		Verb:            protocol.VerbSpawnBody,
	}); err != nil {
		t.Fatalf("write cmd: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var ack protocol.AckMsg
		raw := readMsg(t, conn)
		if err := json.Unmarshal(raw, &ack); err != nil {
			continue
		}
		if ack.Type != protocol.TypeAck || ack.AckFor != "c1" {
			continue
		}
		if !ack.Accepted {
			t.Fatalf("spawn_body rejected: %s %s", ack.Code, ack.Reason)
		}
		if ack.EntityID == "" {
			t.Fatalf("ack missing entity id: %+v", ack)
		}
		return
	}
	t.Fatal("no ACK for spawn_body before deadline")
}

func TestResumeAcrossReconnect(t *testing.T) {
	ts, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, ts)
	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "reconnecting",
	}); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	var first protocol.WelcomeMsg
	if err := json.Unmarshal(readMsg(t, conn), &first); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}
	conn.Close()

	// Give the room a few ticks to process the disconnect.
	time.Sleep(200 * time.Millisecond)

	conn2 := dial(t, ts)
	defer conn2.Close()
	if err := conn2.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "reconnecting",
		ResumeToken:     first.ResumeToken,
	}); err != nil {
		t.Fatalf("write resume hello: %v", err)
	}
	var second protocol.WelcomeMsg
	if err := json.Unmarshal(readMsg(t, conn2), &second); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("resume minted session %s, want %s", second.SessionID, first.SessionID)
	}
	if second.ResumeToken != first.ResumeToken {
		t.Fatalf("resume changed the token")
	}
}

func TestRejectsWrongFirstMessage(t *testing.T) {
	ts, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, ts)
	defer conn.Close()

	if err := conn.WriteJSON(protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		CmdID:           "c1",
		Verb:            protocol.VerbSpawnBody,
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected close after non-HELLO first message")
	}
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

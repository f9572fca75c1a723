// Command bot is a scripted smoke-test client: it joins a room, spawns a
// body, dresses it, and walks a few accessories through mount and storage.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"avatarkit.gg/internal/protocol"
)

type script struct {
	conn   *websocket.Conn
	logger *log.Logger

	step   int
	cmdSeq int

	bodyID   string
	outfitID string
	hatID    string
	capeID   string
}

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "client name")
		outfit  = flag.String("outfit", "OUT_TRAVELER", "outfit def id")
		hatDef  = flag.String("hat", "ACC_HAT_STRAW", "immediate accessory def id")
		capeDef = flag.String("cape", "ACC_CAPE_RED", "eased accessory def id")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	s := &script{conn: conn, logger: logger}
	defs := scriptDefs{outfit: *outfit, hat: *hatDef, cape: *capeDef}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s room=%s tick_rate=%d",
				w.SessionID, w.RoomParams.RoomID, w.RoomParams.TickRateHz)
			s.advance(defs)

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if !ack.Accepted {
				logger.Printf("ACK rejected step=%d code=%s reason=%s", s.step, ack.Code, ack.Reason)
				return
			}
			logger.Printf("ACK %s entity=%s result=%s tick=%d", ack.AckFor, ack.EntityID, ack.Result, ack.ServerTick)
			s.record(ack)
			s.advance(defs)

		case protocol.TypeEvent:
			var ev protocol.EventMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			logger.Printf("EVENT %s accessory=%s %s->%s tick=%d", ev.Kind, ev.AccessoryID, ev.From, ev.To, ev.Tick)

		case protocol.TypeWardrobe:
			var w protocol.WardrobeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WARDROBE body=%s outfit=%s accessories=%d", w.Body.ID, w.Body.OutfitID, len(w.Accessories))
			logger.Printf("script complete")
			return
		}
	}
}

type scriptDefs struct {
	outfit string
	hat    string
	cape   string
}

func (s *script) record(ack protocol.AckMsg) {
	switch s.step {
	case 1:
		s.bodyID = ack.EntityID
	case 2:
		s.outfitID = ack.EntityID
	case 3:
		s.hatID = ack.EntityID
	case 4:
		s.capeID = ack.EntityID
	}
}

// advance issues the next scripted command; each step waits for the
// previous ACK so entity ids are known.
func (s *script) advance(defs scriptDefs) {
	s.step++
	switch s.step {
	case 1:
		s.send(protocol.CmdMsg{Verb: protocol.VerbSpawnBody})
	case 2:
		s.send(protocol.CmdMsg{Verb: protocol.VerbCreateOutfit, DefID: defs.outfit})
	case 3:
		s.send(protocol.CmdMsg{Verb: protocol.VerbCreateAccessory, DefID: defs.hat})
	case 4:
		s.send(protocol.CmdMsg{Verb: protocol.VerbCreateAccessory, DefID: defs.cape})
	case 5:
		s.send(protocol.CmdMsg{Verb: protocol.VerbSetOutfit, BodyID: s.bodyID, OutfitID: s.outfitID})
	case 6:
		s.send(protocol.CmdMsg{Verb: protocol.VerbAddAccessory, BodyID: s.bodyID, AccessoryID: s.hatID})
	case 7:
		s.send(protocol.CmdMsg{Verb: protocol.VerbAddAccessory, BodyID: s.bodyID, AccessoryID: s.capeID})
	case 8:
		s.send(protocol.CmdMsg{Verb: protocol.VerbStoreAccessory, AccessoryID: s.hatID})
	case 9:
		s.send(protocol.CmdMsg{Verb: protocol.VerbInspect, BodyID: s.bodyID})
	default:
	}
}

func (s *script) send(cmd protocol.CmdMsg) {
	s.cmdSeq++
	cmd.Type = protocol.TypeCmd
	cmd.ProtocolVersion = protocol.Version
	cmd.CmdID = fmt.Sprintf("bot_%d", s.cmdSeq)
	if err := s.conn.WriteJSON(cmd); err != nil {
		s.logger.Printf("send cmd: %v", err)
	}
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

const usage = `Commands:
  /join <room> [name]   join or create a room and make it current
  /room <room>          switch the current room
  /invite <user>        invite a user (leader only)
  /kick <user>          remove a user (leader only)
  /transfer <user>      hand leadership to a member
  /leave                leave the current room
Anything else is sent to the current room.`

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("WIRECHAT_TOKEN"), "access token (see `wirechat-rooms token`)")
	room := flag.String("room", "general", "room to join on connect")
	flag.Parse()

	if *token == "" {
		return errors.New("token is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+*token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	state := &chatState{room: *room}
	join, err := state.parse("/join " + *room)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, join); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	fmt.Printf("Connected to %s in room %s\n%s\n", *addr, *room, usage)

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, state)
	return nil
}

type chatState struct {
	room string
}

// parse turns an input line into an envelope. A nil envelope means nothing to send.
func (s *chatState) parse(line string) (*proto.Inbound, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return envelope(proto.InboundTypeSend, proto.SendData{RoomID: s.room, Content: line})
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	needArg := func() (string, error) {
		if len(args) == 0 {
			return "", fmt.Errorf("%s needs an argument", cmd)
		}
		return args[0], nil
	}

	switch cmd {
	case "/join":
		id, err := needArg()
		if err != nil {
			return nil, err
		}
		s.room = id
		return envelope(proto.InboundTypeJoin, proto.JoinData{RoomID: id, RoomName: strings.Join(args[1:], " ")})
	case "/room":
		id, err := needArg()
		if err != nil {
			return nil, err
		}
		s.room = id
		return nil, nil
	case "/invite", "/kick", "/transfer":
		user, err := needArg()
		if err != nil {
			return nil, err
		}
		return envelope(strings.TrimPrefix(cmd, "/"), proto.TargetData{RoomID: s.room, RecipientUserID: user})
	case "/leave":
		return envelope(proto.InboundTypeLeave, proto.RoomData{RoomID: s.room})
	default:
		return nil, fmt.Errorf("unknown command %s", cmd)
	}
}

func envelope(typ string, data any) (*proto.Inbound, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return &proto.Inbound{Type: typ, Data: payload}, nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out struct {
			Type    string          `json:"type"`
			Event   string          `json:"event"`
			Channel string          `json:"channel"`
			Data    json.RawMessage `json:"data"`
			Error   *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		fmt.Println(format(out.Type, out.Event, out.Channel, out.Data, out.Error))
	}
}

func format(typ, event, channel string, data json.RawMessage, protoErr *proto.Error) string {
	switch typ {
	case proto.OutboundTypeEvent:
		var ev proto.RoomEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Sprintf("bad event: %v", err)
		}
		ts := time.UnixMilli(ev.Timestamp).Format(time.Kitchen)
		if event == "CHAT" {
			return fmt.Sprintf("%s [%s] %s: %s", ts, ev.RoomID, ev.SenderUserID, ev.Content)
		}
		return fmt.Sprintf("%s [%s] * %s", ts, ev.RoomID, ev.Content)
	case proto.OutboundTypeNotice:
		var n proto.Notice
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Sprintf("bad notice: %v", err)
		}
		if n.Code != "" {
			return fmt.Sprintf("(%s) %s: %s", channel, n.Code, n.Message)
		}
		return fmt.Sprintf("(%s) %s", channel, n.Message)
	case proto.OutboundTypeError:
		if protoErr != nil {
			return fmt.Sprintf("error %s: %s", protoErr.Code, protoErr.Msg)
		}
	}
	return fmt.Sprintf("type=%s data=%s", typ, data)
}

func writeLoop(ctx context.Context, conn *websocket.Conn, state *chatState) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "/help" {
				fmt.Println(usage)
				continue
			}
			inbound, err := state.parse(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if inbound == nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, inbound); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}

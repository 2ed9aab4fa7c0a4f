package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/charades-server/pkg/charadesdto"
)

// wscheck dials a running server, creates (or joins) a room and prints
// every frame it receives for a short window.
func main() {
	wsURL := os.Getenv("WS_URL")
	if wsURL == "" {
		wsURL = "ws://localhost:3001/ws"
	}
	name := os.Getenv("PLAYER_NAME")
	if name == "" {
		name = "wscheck"
	}
	roomCode := os.Getenv("ROOM_CODE")
	origin := os.Getenv("ORIGIN")

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	opts := &websocket.DialOptions{CompressionMode: websocket.CompressionNoContextTakeover}
	if origin != "" {
		opts.HTTPHeader = http.Header{"Origin": []string{origin}}
	}
	conn, _, err := websocket.Dial(cctx, wsURL, opts)
	if err != nil {
		log.Fatalf("WS connect error: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	var env charadesdto.Envelope
	if roomCode != "" {
		env, err = frame(charadesdto.EventJoinRoom, charadesdto.JoinRoomRequest{RoomCode: roomCode, PlayerName: name})
	} else {
		env, err = frame(charadesdto.EventCreateRoom, charadesdto.CreateRoomRequest{PlayerName: name})
	}
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	if err := wsjson.Write(cctx, conn, env); err != nil {
		log.Fatalf("WS write error: %v", err)
	}
	log.Printf("sent %s to %s", env.Type, wsURL)

	// Observe for a short window
	rctx, rcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer rcancel()
	for {
		var in charadesdto.Envelope
		if err := wsjson.Read(rctx, conn, &in); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || websocket.CloseStatus(err) != -1 {
				return
			}
			log.Printf("WS read error: %v", err)
			return
		}
		fmt.Printf("WS %s %s\n", in.Type, in.Payload)
	}
}

func frame(event string, payload any) (charadesdto.Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return charadesdto.Envelope{}, err
	}
	return charadesdto.Envelope{Type: event, Payload: raw}, nil
}

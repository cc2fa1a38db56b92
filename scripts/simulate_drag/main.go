// ===========================================================================
// scripts/simulate_drag: Drive a view socket like a user would
//
// Opens a view on a running server, looks down on the scene, clicks a node
// and drags it around a circle. Selection and layout notifications are
// printed as they arrive.
//
// Usage:
//   go run ./scripts/simulate_drag --server ws://localhost:8080 --drags 3
// ===========================================================================
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vyuha/vyuha-scene/internal/api"
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/render"
	"github.com/vyuha/vyuha-scene/internal/scene"
)

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

var (
	server   = flag.String("server", "ws://localhost:8080", "VYUHA scene server (ws:// or wss://)")
	snapshot = flag.String("snapshot", "", "Snapshot id (default: newest)")
	drags    = flag.Int("drags", 3, "Number of nodes to drag")
	steps    = flag.Int("steps", 24, "Pointer moves per drag")
	rate     = flag.Int("rate", 30, "Pointer moves per second")
	layoutAt = flag.String("layout", "", "Apply this layout before dragging (circular|force|reset)")
)

// The viewport is square; looking straight down from height viewSize/2
// with a 90° field of view, one pixel is one world unit.
const viewSize = 500.0

var topDown = geom.Camera{
	Position: geom.V(0, viewSize/2, 0),
	Up:       geom.V(0, 0, -1),
	FovY:     90,
}

func toPixel(p geom.Vec3, typ scene.PointerType) *scene.PointerEvent {
	return &scene.PointerEvent{
		Type:   typ,
		X:      p.X + viewSize/2,
		Y:      p.Z + viewSize/2,
		Width:  viewSize,
		Height: viewSize,
	}
}

func onScreen(p geom.Vec3) bool {
	return math.Abs(p.X) < viewSize/2-10 && math.Abs(p.Z) < viewSize/2-10
}

func main() {
	flag.Parse()

	url := *server + "/api/view"
	if *snapshot != "" {
		url += "?snapshot_id=" + *snapshot
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("✗ dial %s: %v", url, err)
	}
	defer conn.Close()

	frames := make(chan render.Frame, 1)
	go readLoop(conn, frames)

	send := func(msg api.ClientMessage) {
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("✗ send %s: %v", msg.Type, err)
		}
	}

	send(api.ClientMessage{Type: api.MsgCamera, Camera: &topDown})
	if *layoutAt != "" {
		send(api.ClientMessage{Type: api.MsgLayout, Algorithm: *layoutAt})
	}

	var frame render.Frame
	select {
	case frame = <-frames:
	case <-time.After(5 * time.Second):
		log.Fatal("✗ no frame within 5s")
	}
	if *layoutAt != "" {
		// Let the layout land before picking targets.
		time.Sleep(500 * time.Millisecond)
		select {
		case frame = <-frames:
		default:
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	tick := time.NewTicker(time.Second / time.Duration(*rate))
	defer tick.Stop()

	done := 0
	for _, n := range frame.Nodes {
		if done >= *drags {
			break
		}
		if !onScreen(n.Position) {
			continue
		}
		fmt.Printf("▶ dragging %s from (%.1f, %.1f)\n", n.ID, n.Position.X, n.Position.Z)
		send(api.ClientMessage{Type: api.MsgPointer, Pointer: toPixel(n.Position, scene.PointerClick)})
		send(api.ClientMessage{Type: api.MsgPointer, Pointer: toPixel(n.Position, scene.PointerDown)})

		radius := 30.0
		var last geom.Vec3
		for i := 1; i <= *steps; i++ {
			select {
			case <-interrupt:
				send(api.ClientMessage{Type: api.MsgPointer, Pointer: toPixel(last, scene.PointerUp)})
				return
			case <-tick.C:
			}
			angle := 2 * math.Pi * float64(i) / float64(*steps)
			last = n.Position.Add(geom.V(radius*math.Sin(angle), 0, radius*(1-math.Cos(angle))))
			send(api.ClientMessage{Type: api.MsgPointer, Pointer: toPixel(last, scene.PointerMove)})
		}
		send(api.ClientMessage{Type: api.MsgPointer, Pointer: toPixel(last, scene.PointerUp)})
		done++
	}
	fmt.Printf("✓ %d drags sent\n", done)
	time.Sleep(500 * time.Millisecond)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop prints notifications and hands the newest frame to frames.
func readLoop(conn *websocket.Conn, frames chan render.Frame) {
	for {
		var msg api.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case api.MsgSession:
			fmt.Printf("● session %s on %s\n", msg.Session, msg.SnapshotID)
		case api.MsgFrame:
			select {
			case <-frames:
			default:
			}
			frames <- *msg.Frame
		case api.MsgSelection:
			fmt.Printf("  %s %s\n", msg.Selection.Kind, msg.Selection.ID)
		case api.MsgLayoutOK:
			fmt.Printf("● layout %s applied\n", msg.Algorithm)
		case api.MsgError:
			fmt.Printf("✗ %s: %s\n", msg.Code, msg.Error)
		}
	}
}

// ---------------------------------------------------------------------------
// scripts/demo_scenario/main.go: Scripted tour of a running scene server
//
// Usage:
//   go run ./scripts/demo_scenario --server http://localhost:8080
//
// Flags:
//   --server    Base URL of the VYUHA scene server  (default: http://localhost:8080)
//   --snapshot  Snapshot file to upload first       (default: use the newest stored)
//   --listen    Seconds to stream SSE events at the end (default: 20)
// ---------------------------------------------------------------------------
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vyuha/vyuha-scene/internal/api"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// ---------------------------------------------------------------------------
// ANSI colour helpers
// ---------------------------------------------------------------------------

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	white  = "\033[37m"
)

func colour(c, s string) string { return c + s + reset }
func header(phase int, msg string) {
	bar := strings.Repeat("━", 60)
	fmt.Println()
	fmt.Println(colour(dim, bar))
	fmt.Printf("  %s  %s\n", colour(bold+cyan, fmt.Sprintf("Phase %d/4", phase)), colour(bold+white, msg))
	fmt.Println(colour(dim, bar))
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colour(red, "✗ "+fmt.Sprintf(format, args...)))
	os.Exit(1)
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

func getJSON(url string, target any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func postJSON(url, contentType string, body []byte, target any) error {
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var e map[string]string
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("POST %s returned %d: %s", url, resp.StatusCode, e["error"])
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ---------------------------------------------------------------------------
// Phases
// ---------------------------------------------------------------------------

func upload(serverURL, path string) graph.Summary {
	data, err := os.ReadFile(path)
	if err != nil {
		fail("read %s: %v", path, err)
	}
	contentType := "application/json"
	if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
		contentType = "application/yaml"
	}
	var out struct {
		Data   graph.Summary         `json:"data"`
		Report graph.NormalizeReport `json:"report"`
	}
	if err := postJSON(serverURL+"/api/snapshots", contentType, data, &out); err != nil {
		fail("%v", err)
	}
	fmt.Printf("  %s uploaded %s (%d nodes, %d edges)\n",
		colour(green, "✓"), out.Data.ID, out.Data.NodeCount, out.Data.EdgeCount)
	if n := len(out.Report.DanglingEdges); n > 0 {
		fmt.Printf("  %s %d dangling edges kept for the record\n", colour(yellow, "⚠"), n)
	}
	return out.Data
}

func newest(serverURL string) graph.Summary {
	var list struct {
		Data []graph.Summary `json:"data"`
	}
	if err := getJSON(serverURL+"/api/snapshots?limit=1", &list); err != nil {
		fail("%v", err)
	}
	if len(list.Data) == 0 {
		fail("no snapshots stored; pass --snapshot or run generate_demo_data first")
	}
	return list.Data[0]
}

func describe(serverURL, id string) {
	var stats struct {
		Data      map[string]any `json:"data"`
		Languages []string       `json:"languages"`
		Services  []string       `json:"services"`
	}
	if err := getJSON(serverURL+"/api/snapshots/"+id+"/stats", &stats); err != nil {
		fail("%v", err)
	}
	for k, v := range stats.Data {
		fmt.Printf("  %-20s %v\n", k, v)
	}
	fmt.Printf("  %-20s %s\n", "languages", strings.Join(stats.Languages, ", "))
	fmt.Printf("  %-20s %s\n", "services", strings.Join(stats.Services, ", "))
}

func layouts(serverURL, id string) {
	for _, alg := range []string{"circular", "force", "reset"} {
		body, _ := json.Marshal(api.LayoutPreviewRequest{SnapshotID: id, Algorithm: alg})
		var out struct {
			Data api.LayoutPreviewResult `json:"data"`
		}
		start := time.Now()
		if err := postJSON(serverURL+"/api/layout/preview", "application/json", body, &out); err != nil {
			fmt.Printf("  %s %s: %v\n", colour(red, "✗"), alg, err)
			continue
		}
		note := ""
		if out.Data.Partial {
			note = colour(yellow, " (budget hit, partial)")
		}
		fmt.Printf("  %s %-9s %4d positions in %s%s\n",
			colour(green, "✓"), alg, len(out.Data.Positions), time.Since(start).Round(time.Millisecond), note)
	}
}

// stream prints SSE events for d.
func stream(serverURL string, d time.Duration) {
	client := &http.Client{Timeout: d}
	resp, err := client.Get(serverURL + "/api/events")
	if err != nil {
		fail("subscribe: %v", err)
	}
	defer resp.Body.Close()

	fmt.Printf("  %s open a view (or run simulate_drag) to see events\n", colour(dim, "…"))
	sc := bufio.NewScanner(resp.Body)
	event := ""
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event != "heartbeat":
			fmt.Printf("  %s %s\n", colour(cyan, event), colour(dim, strings.TrimPrefix(line, "data: ")))
		}
	}
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Base URL of the VYUHA scene server")
	snapshotFile := flag.String("snapshot", "", "Snapshot file to upload first")
	listen := flag.Int("listen", 20, "Seconds to stream SSE events")
	flag.Parse()

	fmt.Println(colour(bold, "VYUHA SCENE — guided tour of "+*serverURL))

	header(1, "Snapshot")
	var sum graph.Summary
	if *snapshotFile != "" {
		sum = upload(*serverURL, *snapshotFile)
	} else {
		sum = newest(*serverURL)
		fmt.Printf("  using %s (%d nodes)\n", sum.ID, sum.NodeCount)
	}

	header(2, "Shape")
	describe(*serverURL, sum.ID)

	header(3, "Layouts")
	layouts(*serverURL, sum.ID)

	header(4, "Live events")
	stream(*serverURL, time.Duration(*listen)*time.Second)

	fmt.Println()
	fmt.Println(colour(green, "✓ tour complete"))
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// roomState mirrors the fitting server's /admin/v1/state response.
type roomState struct {
	RoomID  string `json:"room_id"`
	Tick    uint64 `json:"tick"`
	Metrics struct {
		Sessions    int64   `json:"sessions"`
		Bodies      int64   `json:"bodies"`
		Accessories int64   `json:"accessories"`
		Outfits     int64   `json:"outfits"`
		StepMS      float64 `json:"step_ms"`
		QueueDepths struct {
			Inbox int `json:"inbox"`
			Join  int `json:"join"`
			Leave int `json:"leave"`
		} `json:"queue_depths"`
	} `json:"metrics"`
}

// stateCmd queries a running fitting server for its live room state. The
// admin endpoints are loopback-only, so the default url assumes a local
// server or a port-forward.
func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "fitting server base url")
	raw := fs.Bool("raw", false, "print the raw JSON response")
	_ = fs.Parse(args)

	body, ok := adminGet(*baseURL, "/admin/v1/state")
	if !ok {
		fmt.Println(strings.TrimSpace(string(body)))
		os.Exit(1)
	}
	if *raw {
		fmt.Println(strings.TrimSpace(string(body)))
		return
	}
	var st roomState
	if err := json.Unmarshal(body, &st); err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	fmt.Printf("room %s tick %d\n", st.RoomID, st.Tick)
	fmt.Printf("  sessions %d bodies %d outfits %d accessories %d\n",
		st.Metrics.Sessions, st.Metrics.Bodies, st.Metrics.Outfits, st.Metrics.Accessories)
	fmt.Printf("  step %.3fms queues inbox=%d join=%d leave=%d\n",
		st.Metrics.StepMS, st.Metrics.QueueDepths.Inbox, st.Metrics.QueueDepths.Join, st.Metrics.QueueDepths.Leave)
}

// snapshotCmd asks the server to export a wardrobe snapshot now rather than
// waiting for the next scheduled export tick.
func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "fitting server base url")
	_ = fs.Parse(args)

	req, _ := http.NewRequest(http.MethodPost, adminURL(*baseURL, "/admin/v1/snapshot"), nil)
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func adminGet(base, path string) ([]byte, bool) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(adminURL(base, path))
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return b, resp.StatusCode/100 == 2
}

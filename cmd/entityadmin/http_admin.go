package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// adminFetch hits one admin endpoint on a running server and returns the
// response body. Non-2xx responses become errors carrying whatever detail
// the server wrote.
func adminFetch(method, base, endpoint string, timeout time.Duration) ([]byte, error) {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + endpoint
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return nil, err
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8447", "server base url")
	_ = fs.Parse(args)

	body, err := adminFetch(http.MethodGet, *baseURL, "/admin/v1/state", 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") != nil {
		fmt.Println(strings.TrimSpace(string(body)))
		return
	}
	fmt.Println(pretty.String())
}

func archiveCmd(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8447", "server base url")
	_ = fs.Parse(args)

	body, err := adminFetch(http.MethodPost, *baseURL, "/admin/v1/archive", 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "archive:", err)
		os.Exit(1)
	}
	var ack struct {
		Tick uint64 `json:"tick"`
	}
	if json.Unmarshal(body, &ack) != nil {
		fmt.Println(strings.TrimSpace(string(body)))
		return
	}
	fmt.Printf("archive written at tick %d\n", ack.Tick)
}

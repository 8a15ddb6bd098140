package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	os.Exit(get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/state"))
}

func heightCmd(args []string) {
	fs := flag.NewFlagSet("height", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	x := fs.String("x", "0", "world x to sample")
	_ = fs.Parse(args)
	q := url.Values{"x": {*x}}
	os.Exit(get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/height?" + q.Encode()))
}

// get prints the response body and returns the process exit code.
func get(u string) int {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}

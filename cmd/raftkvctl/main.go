package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	var (
		addr    = flag.String("addr", "localhost:8080", "debug API address")
		command = flag.String("command", "status", "command: status, log, peers")
		start   = flag.String("start", "", "range start key (log command only)")
		end     = flag.String("end", "", "range end key (log command only)")
	)
	flag.Parse()

	var url string
	switch *command {
	case "status":
		url = fmt.Sprintf("http://%s/status", *addr)
	case "log":
		url = fmt.Sprintf("http://%s/log?start=%s&end=%s", *addr, *start, *end)
	case "peers":
		url = fmt.Sprintf("http://%s/peers", *addr)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		os.Exit(1)
	}

	resp, err := http.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading response: %v\n", err)
		os.Exit(1)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		fmt.Println(string(body))
		return
	}
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(pretty))
}

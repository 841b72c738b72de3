package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quorumkv/raftkv/pkg/debugapi"
	"github.com/quorumkv/raftkv/pkg/kvstore"
	"github.com/quorumkv/raftkv/pkg/raft"
	"github.com/quorumkv/raftkv/pkg/storage"
	"github.com/quorumkv/raftkv/pkg/transport"
)

func main() {
	var (
		id        = flag.String("id", "", "replica id")
		port      = flag.Int("port", 0, "UDP port to listen on")
		peers     = flag.String("peers", "", "comma-separated id=host:port pairs for every other replica")
		dataDir   = flag.String("data-dir", "", "directory for durable state; empty keeps state in memory only")
		debugAddr = flag.String("debug-addr", "", "address for the read-only debug HTTP API; empty disables it")
	)
	flag.Parse()

	if *id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required")
		os.Exit(1)
	}
	if *port == 0 {
		fmt.Fprintln(os.Stderr, "Error: -port is required")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("replica", *id)

	peerAddrs, peerIDs, err := parsePeers(*peers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -peers: %v\n", err)
		os.Exit(1)
	}

	t, err := transport.NewUDPTransport(*port, peerAddrs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting transport: %v\n", err)
		os.Exit(1)
	}
	defer t.Close()

	var st raft.Storage
	if *dataDir != "" {
		bolt, err := storage.NewBolt(*dataDir + "/" + *id + ".db")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening durable storage: %v\n", err)
			os.Exit(1)
		}
		st = bolt
	} else {
		st = storage.NewMemory()
	}
	defer st.Close()

	values := kvstore.New()
	replica := raft.New(*id, peerIDs, t, st, values, logger)

	go replica.Run()
	logger.Info("replica started", "port", *port, "peers", peerIDs)

	if *debugAddr != "" {
		srv := debugapi.New(replica, values)
		go func() {
			if err := http.ListenAndServe(*debugAddr, srv); err != nil {
				logger.Error("debug API exited", "err", err)
			}
		}()
		logger.Info("debug API listening", "addr", *debugAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	if err := replica.Close(); err != nil {
		logger.Warn("error during shutdown", "err", err)
	}
}

// parsePeers accepts "id1=host:port,id2=host:port" and returns the
// address map NewUDPTransport wants alongside the bare id list New
// wants for the peer roster.
func parsePeers(spec string) (map[string]string, []string, error) {
	addrs := make(map[string]string)
	var ids []string
	if spec == "" {
		return addrs, ids, nil
	}
	for _, pair := range strings.Split(spec, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, nil, fmt.Errorf("malformed peer entry %q", pair)
		}
		addrs[kv[0]] = kv[1]
		ids = append(ids, kv[0])
	}
	return addrs, ids, nil
}

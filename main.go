package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mdp/qrterminal/v3"
	"golang.org/x/term"

	"github.com/quillspace/server/api"
	"github.com/quillspace/server/conversation"
	"github.com/quillspace/server/logger"
	"github.com/quillspace/server/mcp"
	"github.com/quillspace/server/middleware"
	"github.com/quillspace/server/notify"
	"github.com/quillspace/server/store"
	"github.com/quillspace/server/watch"
	"github.com/quillspace/server/ws"
)

const (
	version  = "0.3.0"
	appTitle = "Quillspace"
)

func main() {
	devMode := os.Getenv("DEV_MODE") == "true"

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "DATA_DIR is required when no home directory is available")
			os.Exit(1)
		}
		dataDir = filepath.Join(home, ".quillspace")
	}

	// The mcp subcommand talks over stdio, so it must not log there.
	if len(os.Args) > 1 && os.Args[1] == "mcp" {
		logger.Init(logger.Config{DataDir: dataDir, DevMode: false})
		runMCP(dataDir)
		return
	}

	logger.Init(logger.Config{DataDir: dataDir, DevMode: devMode})

	token := os.Getenv("AUTH_TOKEN")
	if token == "" {
		slog.Error("AUTH_TOKEN environment variable is required")
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := run(port, token, dataDir, devMode); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func runMCP(dataDir string) {
	fs, err := store.NewFileStore(dataDir)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if err := mcp.NewServer(fs, version).Run(context.Background()); err != nil {
		slog.Error("mcp server exited", "error", err)
		os.Exit(1)
	}
}

func run(port, token, dataDir string, devMode bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fs, err := store.NewFileStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	broadcaster := notify.NewBroadcaster()

	manager := conversation.NewManager(fs, broadcaster, conversation.Config{})
	manager.Initialize(ctx)
	defer manager.Close()

	listWatcher := watch.NewListWatcher(manager)
	listWatcher.Start()
	defer listWatcher.Stop()

	storeWatcher := watch.NewStoreWatcher(fs.Dir())
	if err := storeWatcher.Start(); err != nil {
		slog.Warn("store watching disabled", "error", err)
		storeWatcher = nil
	} else {
		defer storeWatcher.Stop()
	}

	handler := newHandler(token, devMode, manager, broadcaster, listWatcher, storeWatcher)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	slog.Info("server started", "port", port, "dataDir", dataDir, "devMode", devMode)
	if devMode {
		printPairingQR(port, token)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		return server.Shutdown(context.Background())
	}
}

func newHandler(token string, devMode bool, manager *conversation.Manager, broadcaster *notify.Broadcaster, listWatcher *watch.ListWatcher, storeWatcher *watch.StoreWatcher) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"pong"}`))
	})

	api.NewConversationHandler(manager).Register(mux)

	// WebSocket endpoint authenticates in-band as the first RPC request
	rpcHandler := ws.NewRPCHandler(token, version, appTitle, devMode, manager, broadcaster, listWatcher, storeWatcher)
	mux.Handle("GET /ws", rpcHandler)

	return middleware.Auth(token)(mux)
}

// printPairingQR renders a scannable connection URL for clients on the same
// network. Dev convenience only; skipped when stdout is not a terminal.
func printPairingQR(port, token string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}

	pairingURL := fmt.Sprintf("quillspace://pair?port=%s&token=%s", port, token)
	fmt.Println("Scan to pair a client:")
	qrterminal.GenerateHalfBlock(pairingURL, qrterminal.L, os.Stdout)
	fmt.Println(pairingURL)
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/cuedeck/cuedeck/internal/config"
	"github.com/cuedeck/cuedeck/internal/convo"
	"github.com/cuedeck/cuedeck/internal/cue"
	"github.com/cuedeck/cuedeck/internal/notify"
	"github.com/cuedeck/cuedeck/internal/queue"
	"github.com/cuedeck/cuedeck/internal/store"
	webassets "github.com/cuedeck/cuedeck/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cue console server",
	Run:   runServe,
}

var (
	serveHost string
	servePort int
	serveDB   string
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (overrides config)")
}

var serveStartTime = time.Now()

func allowCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func writeResult(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	payload["success"] = true
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func serveConsoleAsset(w http.ResponseWriter, name string) {
	data, err := webassets.Files.ReadFile(name)
	if err != nil {
		http.Error(w, "asset not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func serveConsoleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	serveConsoleAsset(w, "index.html")
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🖥️ CueDeck Console")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if serveHost != "" {
		cfg.Console.Host = serveHost
	}
	if servePort != 0 {
		cfg.Console.Port = servePort
	}
	if serveDB != "" {
		cfg.Paths.DBPath = serveDB
	}

	if err := config.EnsureDir(filepath.Dir(cfg.Paths.DBPath)); err != nil {
		fmt.Printf("Failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(cfg.Paths.DBPath)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	fmt.Printf("💾 Database: %s\n", cfg.Paths.DBPath)

	engine := cue.NewEngine(st)
	convoSvc := convo.NewService(st)
	queueMgr := queue.NewManager(st)

	var notifiers []notify.Notifier
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.Token != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notify.Slack.Token, cfg.Notify.Slack.Channel))
		fmt.Println("🔔 Slack notifications enabled")
	}
	if cfg.Notify.Kafka.Enabled && cfg.Notify.Kafka.Brokers != "" {
		brokers := strings.Split(cfg.Notify.Kafka.Brokers, ",")
		pub := notify.NewKafkaPublisher(brokers, cfg.Notify.Kafka.Topic)
		defer pub.Close()
		notifiers = append(notifiers, pub)
		fmt.Printf("📨 Kafka events enabled (topic %s)\n", cfg.Notify.Kafka.Topic)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := notify.NewWatcher(st, notifiers, cfg.Watch.Interval)
	go watcher.Run(ctx)

	// publish pushes a lifecycle event for a single request, best effort.
	publish := func(evType, requestID string) {
		req, err := st.GetRequest(requestID)
		if err != nil || req == nil {
			return
		}
		watcher.Publish(ctx, notify.Event{
			Type:      evType,
			RequestID: req.RequestID,
			AgentID:   req.AgentID,
			At:        req.UpdatedAt,
		})
	}

	mux := http.NewServeMux()

	// API: Status (unauthenticated health check)
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, OPTIONS")
		w.Header().Set("Content-Type", "application/json")
		pending, _ := st.PendingTotal()
		json.NewEncoder(w).Encode(map[string]any{
			"version":        version,
			"db_path":        cfg.Paths.DBPath,
			"pending_total":  pending,
			"uptime_seconds": int(time.Since(serveStartTime).Seconds()),
		})
	})

	// API: Conversation list
	mux.HandleFunc("/api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		convs, err := convoSvc.List(r.URL.Query().Get("view"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if convs == nil {
			convs = []convo.Conversation{}
		}
		writeResult(w, map[string]any{"conversations": convs})
	})

	// API: Archive / unarchive / delete conversations
	convMutation := func(apply func([]string) error) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			allowCORS(w, "POST, OPTIONS")
			if r.Method == http.MethodOptions {
				return
			}
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			var body struct {
				Keys []string `json:"keys"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			if err := apply(body.Keys); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeResult(w, map[string]any{})
		}
	}
	mux.HandleFunc("/api/v1/conversations/archive", convMutation(convoSvc.Archive))
	mux.HandleFunc("/api/v1/conversations/unarchive", convMutation(convoSvc.Unarchive))
	mux.HandleFunc("/api/v1/conversations/delete", convMutation(convoSvc.Delete))

	// API: Pending requests
	mux.HandleFunc("/api/v1/requests/pending", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		reqs, err := engine.Pending(r.URL.Query().Get("agent_id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if reqs == nil {
			reqs = []store.CueRequest{}
		}
		writeResult(w, map[string]any{"requests": reqs})
	})

	// API: Respond to a single request
	mux.HandleFunc("/api/v1/respond", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			RequestID string             `json:"request_id"`
			Text      string             `json:"text"`
			Images    []store.Attachment `json:"images"`
			Mentions  []string           `json:"mentions"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.RequestID == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("request_id required"))
			return
		}
		if err := engine.SubmitResponse(body.RequestID, body.Text, body.Images, body.Mentions); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		publish(notify.EventCompleted, body.RequestID)
		writeResult(w, map[string]any{})
	})

	// API: Respond to many requests at once
	mux.HandleFunc("/api/v1/respond/batch", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			RequestIDs []string           `json:"request_ids"`
			Text       string             `json:"text"`
			Images     []store.Attachment `json:"images"`
			Mentions   []string           `json:"mentions"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if len(body.RequestIDs) == 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("request_ids required"))
			return
		}
		if err := engine.BatchRespond(body.RequestIDs, body.Text, body.Images, body.Mentions); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, id := range body.RequestIDs {
			publish(notify.EventCompleted, id)
		}
		writeResult(w, map[string]any{"count": len(body.RequestIDs)})
	})

	// API: Cancel one or many requests
	mux.HandleFunc("/api/v1/cancel", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			RequestID  string   `json:"request_id"`
			RequestIDs []string `json:"request_ids"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		ids := body.RequestIDs
		if body.RequestID != "" {
			ids = append(ids, body.RequestID)
		}
		if len(ids) == 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("request_id required"))
			return
		}
		var cancelErr error
		if len(ids) == 1 {
			cancelErr = engine.CancelRequest(ids[0])
		} else {
			cancelErr = engine.BatchCancel(ids)
		}
		if cancelErr != nil {
			writeError(w, http.StatusInternalServerError, cancelErr)
			return
		}
		for _, id := range ids {
			publish(notify.EventCancelled, id)
		}
		writeResult(w, map[string]any{})
	})

	// API: Conversation timeline (cursor paginated, newest first)
	mux.HandleFunc("/api/v1/timeline", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		q := r.URL.Query()
		agentIDs, err := convoSvc.Scope(q.Get("type"), q.Get("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		before := q.Get("before")
		if before != "" {
			if _, err := store.ParseCursor(before); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		items, next, err := st.Timeline(agentIDs, before, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if items == nil {
			items = []store.TimelineItem{}
		}
		writeResult(w, map[string]any{"items": items, "next_cursor": next})
	})

	// API: Groups
	mux.HandleFunc("/api/v1/groups", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, POST, OPTIONS")
		switch r.Method {
		case http.MethodOptions:
			return
		case http.MethodGet:
			groups, err := st.ListGroups()
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			out := []map[string]any{}
			for _, g := range groups {
				members, err := st.GroupMembers(g.ID)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err)
					return
				}
				if members == nil {
					members = []string{}
				}
				out = append(out, map[string]any{"id": g.ID, "name": g.Name, "members": members})
			}
			writeResult(w, map[string]any{"groups": out})
		case http.MethodPost:
			var body struct {
				Name    string   `json:"name"`
				Members []string `json:"members"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			id, err := convoSvc.CreateGroup(body.Name, body.Members)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeResult(w, map[string]any{"id": id})
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/groups/rename", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		var body struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if err := convoSvc.RenameGroup(body.ID, body.Name); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeResult(w, map[string]any{})
	})

	mux.HandleFunc("/api/v1/groups/members", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		var body struct {
			ID      string   `json:"id"`
			Members []string `json:"members"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if err := convoSvc.SetMembers(body.ID, body.Members); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeResult(w, map[string]any{})
	})

	// API: Agent display names
	mux.HandleFunc("/api/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, POST, OPTIONS")
		switch r.Method {
		case http.MethodOptions:
			return
		case http.MethodGet:
			profiles, err := st.Profiles()
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeResult(w, map[string]any{"profiles": profiles})
		case http.MethodPost:
			var body struct {
				AgentID     string `json:"agent_id"`
				DisplayName string `json:"display_name"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			if body.AgentID == "" {
				writeError(w, http.StatusBadRequest, fmt.Errorf("agent_id required"))
				return
			}
			if err := convoSvc.SetDisplayName(body.AgentID, body.DisplayName); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeResult(w, map[string]any{})
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// API: Message queue
	mux.HandleFunc("/api/v1/queue", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, POST, OPTIONS")
		switch r.Method {
		case http.MethodOptions:
			return
		case http.MethodGet:
			q := r.URL.Query()
			msgs, err := queueMgr.List(q.Get("type"), q.Get("id"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if msgs == nil {
				msgs = []store.QueuedMessage{}
			}
			writeResult(w, map[string]any{"messages": msgs})
		case http.MethodPost:
			var body struct {
				Type   string             `json:"type"`
				ID     string             `json:"id"`
				Text   string             `json:"text"`
				Images []store.Attachment `json:"images"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			msg, err := queueMgr.Enqueue(body.Type, body.ID, body.Text, body.Images)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			writeResult(w, map[string]any{"message": msg})
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/queue/remove", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		var body struct {
			ID string `json:"id"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if err := queueMgr.Remove(body.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeResult(w, map[string]any{})
	})

	mux.HandleFunc("/api/v1/queue/recall", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		var body struct {
			ID string `json:"id"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		msg, err := queueMgr.Recall(body.ID)
		if err != nil {
			status := http.StatusInternalServerError
			if err == queue.ErrNotFound {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		writeResult(w, map[string]any{"message": msg})
	})

	mux.HandleFunc("/api/v1/queue/reorder", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		var body struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			From int    `json:"from"`
			To   int    `json:"to"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if err := queueMgr.Reorder(body.Type, body.ID, body.From, body.To); err != nil {
			status := http.StatusInternalServerError
			if err == queue.ErrIndexOutOfRange {
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}
		writeResult(w, map[string]any{})
	})

	mux.HandleFunc("/api/v1/queue/consume", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		var body struct {
			IDs []string `json:"ids"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		consumed, err := queueMgr.Consume(body.IDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if consumed == nil {
			consumed = []string{}
		}
		writeResult(w, map[string]any{"consumed": consumed})
	})

	// API: Settings
	mux.HandleFunc("/api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, "GET, POST, OPTIONS")
		switch r.Method {
		case http.MethodOptions:
			return
		case http.MethodGet:
			key := r.URL.Query().Get("key")
			if key == "" {
				writeError(w, http.StatusBadRequest, fmt.Errorf("key required"))
				return
			}
			value, err := st.GetSetting(key)
			if err != nil {
				writeResult(w, map[string]any{"key": key, "value": ""})
				return
			}
			writeResult(w, map[string]any{"key": key, "value": value})
		case http.MethodPost:
			var body struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			if body.Key == "" {
				writeError(w, http.StatusBadRequest, fmt.Errorf("key required"))
				return
			}
			if err := st.SetSetting(body.Key, body.Value); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeResult(w, map[string]any{})
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// SPA: Console
	mux.HandleFunc("/", serveConsoleRoot)

	addr := fmt.Sprintf("%s:%d", cfg.Console.Host, cfg.Console.Port)
	consoleURL := fmt.Sprintf("http://%s", addr)

	// QR code so a phone on the same network can open the console.
	if home, err := os.UserHomeDir(); err == nil {
		qrPath := filepath.Join(home, config.ConfigDir, "console-qr.png")
		if err := qrcode.WriteFile(consoleURL, qrcode.Medium, 512, qrPath); err == nil {
			fmt.Printf("📱 Console QR: %s\n", qrPath)
		}
	}

	// Wrap mux with auth middleware if AuthToken is configured
	var handler http.Handler = mux
	if cfg.Console.AuthToken != "" {
		authToken := cfg.Console.AuthToken
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for status endpoint (health check) and CORS preflight
			if r.URL.Path == "/api/v1/status" || r.Method == http.MethodOptions {
				mux.ServeHTTP(w, r)
				return
			}
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token != authToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			mux.ServeHTTP(w, r)
		})
		fmt.Println("🔒 Auth token required for console API")
	}

	server := &http.Server{Addr: addr, Handler: handler}
	go func() {
		fmt.Printf("🖥️  Console listening on %s\n", consoleURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("❌ Console server FAILED to start: %v\n", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	fmt.Println("Console running. Press Ctrl+C to stop.")
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	fmt.Println("Shutting down...")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = server.Shutdown(shutCtx)
	cancel()
}

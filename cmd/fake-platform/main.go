// ABOUTME: Minimal fake support platform for E2E testing — serves seeded history and push frames.
// ABOUTME: Usage: fake-platform [-addr localhost:8090] [-messages 45]

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/2389/opdesk/internal/timeline"
)

func main() {
	addr := flag.String("addr", "localhost:8090", "Listen address")
	seeded := flag.Int("messages", 45, "Seeded messages per conversation")
	chatter := flag.Duration("chatter", 20*time.Second, "Interval between simulated customer messages (0 disables)")
	flag.Parse()

	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	p := newPlatform(*seeded, *chatter, logger)

	r := mux.NewRouter()
	r.HandleFunc("/conversations/{agent}/{conversation}", p.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/live/{agent}/{conversation}", p.handleSocket)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)

	srv := &http.Server{Addr: *addr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	green := color.New(color.FgGreen)
	green.Printf("fake-platform on http://%s\n", *addr)
	fmt.Printf("  history: GET  /conversations/{agent}/{conversation}?limit=20&before_id=...\n")
	fmt.Printf("  live:    WS   /live/{agent}/{conversation}\n")
	fmt.Printf("  seeded conversations: conv-1, conv-2, conv-3 (%d messages each)\n", *seeded)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local testing tool, any origin is fine.
	CheckOrigin: func(*http.Request) bool { return true },
}

// platform keeps per-conversation message lists, newest first, and the
// set of connected live sockets.
type platform struct {
	chatter time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	history map[string][]timeline.Message
	socks   map[string]map[*websocket.Conn]struct{}
}

func newPlatform(seeded int, chatter time.Duration, logger *slog.Logger) *platform {
	p := &platform{
		chatter: chatter,
		logger:  logger,
		history: make(map[string][]timeline.Message),
		socks:   make(map[string]map[*websocket.Conn]struct{}),
	}
	for _, id := range []string{"conv-1", "conv-2", "conv-3"} {
		p.history[id] = seedConversation(id, seeded)
	}
	return p
}

// seedConversation builds n messages newest-first with a sprinkling of
// notes, system events, and attachments.
func seedConversation(conversationID string, n int) []timeline.Message {
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	msgs := make([]timeline.Message, n)
	for i := 0; i < n; i++ {
		seq := n - i
		msg := timeline.Message{
			ID:             fmt.Sprintf("%s-%03d", conversationID, seq),
			ConversationID: conversationID,
			Timestamp:      base.Add(time.Duration(seq) * time.Minute),
			Type:           timeline.MessageTypeMessage,
		}
		switch {
		case seq%10 == 0:
			msg.Sender = timeline.SenderAgent
			msg.Type = timeline.MessageTypeNote
			msg.Content = fmt.Sprintf("internal note %d: checked the account", seq)
		case seq%7 == 0:
			msg.Sender = timeline.SenderCustomer
			msg.Type = timeline.MessageTypeSystem
			msg.Content = "customer joined the conversation"
		case seq%2 == 0:
			msg.Sender = timeline.SenderAgent
			msg.Content = fmt.Sprintf("agent reply %d", seq)
		default:
			msg.Sender = timeline.SenderCustomer
			msg.Content = fmt.Sprintf("customer message %d", seq)
			if seq%13 == 0 {
				msg.Attachments = []timeline.Attachment{{
					ID:   uuid.New().String(),
					Kind: "image",
					Name: "screenshot.png",
					URL:  "https://example.com/screenshot.png",
				}}
			}
		}
		msgs[i] = msg
	}
	return msgs
}

// handleHistory serves a newest-first page, cursored by before_id.
func (p *platform) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversation"]

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	beforeID := r.URL.Query().Get("before_id")

	p.mu.Lock()
	msgs, ok := p.history[conversationID]
	var page []timeline.Message
	if ok {
		start := 0
		if beforeID != "" {
			for i, m := range msgs {
				if m.ID == beforeID {
					start = i + 1
					break
				}
			}
		}
		end := start + limit
		if end > len(msgs) {
			end = len(msgs)
		}
		page = make([]timeline.Message, end-start)
		copy(page, msgs[start:end])
	}
	p.mu.Unlock()

	if !ok {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	p.logger.Info("history page served",
		"conversation_id", conversationID,
		"before_id", beforeID,
		"count", len(page))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

// handleSocket upgrades to a live channel: pushes simulated traffic and
// logs frames received from the console.
func (p *platform) handleSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversation"]

	p.mu.Lock()
	_, known := p.history[conversationID]
	p.mu.Unlock()
	if !known {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("upgrade failed", "error", err)
		return
	}

	p.mu.Lock()
	if p.socks[conversationID] == nil {
		p.socks[conversationID] = make(map[*websocket.Conn]struct{})
	}
	p.socks[conversationID][conn] = struct{}{}
	p.mu.Unlock()

	p.logger.Info("live channel attached", "conversation_id", conversationID)

	done := make(chan struct{})
	if p.chatter > 0 {
		go p.chatterLoop(conversationID, conn, done)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		p.logReceived(conversationID, raw)
	}

	close(done)
	p.mu.Lock()
	delete(p.socks[conversationID], conn)
	p.mu.Unlock()
	conn.Close()
	p.logger.Info("live channel detached", "conversation_id", conversationID)
}

// logReceived decodes console frames for the operator to watch.
func (p *platform) logReceived(conversationID string, raw []byte) {
	var probe struct {
		Type        string `json:"type"`
		IsTyping    *bool  `json:"is_typing"`
		MessageType string `json:"message_type"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		p.logger.Warn("unparseable frame from console", "error", err)
		return
	}

	switch {
	case probe.Type == "agent_typing" && probe.IsTyping != nil:
		p.logger.Info("console typing", "conversation_id", conversationID, "is_typing", *probe.IsTyping)
	case probe.Message != "":
		p.logger.Info("console message",
			"conversation_id", conversationID,
			"message_type", probe.MessageType,
			"content", probe.Message)
		p.appendOutbound(conversationID, probe.Message, probe.MessageType)
	default:
		p.logger.Info("console frame", "conversation_id", conversationID, "raw", string(raw))
	}
}

// appendOutbound records a console-sent message into history so a
// re-fetch sees it.
func (p *platform) appendOutbound(conversationID, content, messageType string) {
	msgType := timeline.MessageTypeMessage
	if messageType == string(timeline.MessageTypeNote) {
		msgType = timeline.MessageTypeNote
	}
	msg := timeline.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Sender:         timeline.SenderAgent,
		Type:           msgType,
		Timestamp:      time.Now(),
		Content:        content,
	}
	p.mu.Lock()
	p.history[conversationID] = append([]timeline.Message{msg}, p.history[conversationID]...)
	p.mu.Unlock()
}

// chatterLoop periodically pushes a simulated customer message, preceded
// by a typing burst, plus the occasional control frame.
func (p *platform) chatterLoop(conversationID string, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(p.chatter)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		n++

		// Typing on, short pause, then the message.
		p.push(conn, map[string]any{"type": "typing", "is_typing": true})
		time.Sleep(time.Second)

		msg := timeline.Message{
			ID:             uuid.New().String(),
			ConversationID: conversationID,
			Sender:         timeline.SenderCustomer,
			Type:           timeline.MessageTypeMessage,
			Timestamp:      time.Now(),
			Content:        fmt.Sprintf("simulated customer message %d", n),
		}
		p.mu.Lock()
		p.history[conversationID] = append([]timeline.Message{msg}, p.history[conversationID]...)
		p.mu.Unlock()

		// Alternate the bare and wrapped shapes real platforms emit.
		if n%2 == 0 {
			p.push(conn, msg)
		} else {
			raw, _ := json.Marshal(msg)
			p.push(conn, map[string]any{"type": "message", "message": json.RawMessage(raw)})
		}
		p.push(conn, map[string]any{"type": "typing", "is_typing": false})

		if n%5 == 0 {
			p.push(conn, map[string]any{
				"type":       "contact_updated",
				"contact_id": "contact-" + strings.TrimPrefix(conversationID, "conv-"),
			})
		}
		if n%3 == 0 {
			p.push(conn, map[string]any{"type": "ping"})
		}
	}
}

func (p *platform) push(conn *websocket.Conn, v any) {
	if err := conn.WriteJSON(v); err != nil {
		p.logger.Warn("push failed", "error", err)
	}
}

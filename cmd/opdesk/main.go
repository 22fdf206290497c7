// ABOUTME: Entry point for the opdesk operator console
// ABOUTME: Interactive loop over the conversation sync engine with live push updates

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/2389/opdesk/internal/config"
	"github.com/2389/opdesk/internal/draft"
	"github.com/2389/opdesk/internal/metrics"
	"github.com/2389/opdesk/internal/platform"
	"github.com/2389/opdesk/internal/scroll"
	"github.com/2389/opdesk/internal/session"
	"github.com/2389/opdesk/internal/timeline"
	"github.com/2389/opdesk/internal/typing"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _           _
   ___  _ __   __| | ___  ___| | __
  / _ \| '_ \ / _' |/ _ \/ __| |/ /
 | (_) | |_) | (_| |  __/\__ \   <
  \___/| .__/ \__,_|\___||___/_|\_\
       |_|
`

func main() {
	configPath := flag.String("config", "opdesk.yaml", "Path to config file")
	profilePath := flag.String("profile", defaultProfilePath(), "Path to operator profile")
	openID := flag.String("open", "", "Conversation to open on startup")
	flag.Parse()

	// Local .env files hold tokens during development; absence is fine.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *profilePath, *openID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath, profilePath, openID string) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	profile, err := loadProfile(profilePath)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Platform:  %s\n", cfg.Platform.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Operator:  %s (%s)\n", profile.Operator.Name, cfg.Platform.AgentID)
	fmt.Println()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		go serveMetrics(cfg.Metrics, m, logger)
	}

	client := platform.NewClient(platform.Config{
		BaseURL:        cfg.Platform.BaseURL,
		SocketURL:      cfg.Platform.SocketURL,
		AgentID:        cfg.Platform.AgentID,
		Token:          cfg.Platform.Token,
		RequestTimeout: cfg.Platform.RequestTimeout,
	}, logger)

	if expiry, ok := client.TokenExpiry(); ok {
		if remaining := time.Until(expiry); remaining < 24*time.Hour {
			yellow.Printf("    ⚠ token expires %s\n\n", expiry.Format(time.RFC1123))
		}
	}

	store, err := draft.NewSQLiteStore(cfg.Drafts.Path)
	if err != nil {
		return fmt.Errorf("opening draft store: %w", err)
	}
	defer store.Close()

	drafts := draft.NewSession(store, draft.SessionConfig{
		AutosaveDebounce:  cfg.Drafts.AutosaveDebounce,
		SuppressionWindow: cfg.Drafts.SuppressionWindow,
	}, logger, m)

	debouncer := typing.NewDebouncer(cfg.Typing.IdleTimeout, logger, m)
	preserver := scroll.NewPreserver(cfg.Scroll.EdgeThreshold, cfg.Scroll.TopThreshold)

	console := newConsole(profile, drafts, logger)

	mgr := session.New(session.Deps{
		Platform:  client,
		Drafts:    drafts,
		Typing:    debouncer,
		Scroll:    preserver,
		PageLimit: cfg.History.PageLimit,
		Callbacks: session.Callbacks{
			MessageAppended: console.onMessage,
			ContactRefresh:  console.onContactRefresh,
			RemoteTyping:    console.onRemoteTyping,
			Disconnected:    console.onDisconnect,
		},
		Logger:  logger,
		Metrics: m,
	})
	defer func() {
		if err := mgr.Close(context.Background()); err != nil {
			logger.Warn("shutdown flush failed", "error", err)
		}
	}()

	if openID != "" {
		if err := console.open(ctx, mgr, openID); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	}

	fmt.Println("Type to draft a reply. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	return console.loop(ctx, mgr)
}

func serveMetrics(cfg config.MetricsConfig, m *metrics.Metrics, logger *slog.Logger) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	r := mux.NewRouter()
	r.Handle(path, m.Handler()).Methods(http.MethodGet)
	logger.Info("metrics endpoint listening", "addr", cfg.Addr, "path", path)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		logger.Warn("metrics endpoint stopped", "error", err)
	}
}

// console owns the interactive loop and the operator's edit buffers.
type console struct {
	profile *Profile
	drafts  *draft.Session
	logger  *slog.Logger

	mu    sync.Mutex
	reply string
	note  string
}

func newConsole(profile *Profile, drafts *draft.Session, logger *slog.Logger) *console {
	return &console{profile: profile, drafts: drafts, logger: logger}
}

func (c *console) loop(ctx context.Context, mgr *session.Manager) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if id := mgr.Active(); id != "" {
			fmt.Printf("[%s]> ", id)
		} else {
			fmt.Print("> ")
		}

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		if strings.TrimSpace(input) == "" {
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(input), "/") {
			quit, err := c.command(ctx, mgr, strings.TrimSpace(input))
			if err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			if quit {
				return nil
			}
			fmt.Println()
			continue
		}

		// Plain text edits the reply buffer: one keystroke event per line,
		// which arms the draft autosave and the typing debouncer.
		if mgr.Active() == "" {
			fmt.Println("No conversation open. Use /open <id> first.")
			fmt.Println()
			continue
		}
		c.mu.Lock()
		c.reply = input
		reply, note := c.reply, c.note
		c.mu.Unlock()
		mgr.OnKeystroke(reply, note)
	}
}

func (c *console) command(ctx context.Context, mgr *session.Manager, input string) (quit bool, err error) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help":
		printHelp()

	case "/open":
		if args == "" {
			return false, fmt.Errorf("usage: /open <conversation-id>")
		}
		return false, c.open(ctx, mgr, args)

	case "/older":
		before := len(mgr.Timeline())
		if err := mgr.FetchOlder(ctx); err != nil {
			return false, err
		}
		loaded := len(mgr.Timeline()) - before
		if loaded == 0 && mgr.HistoryExhausted() {
			fmt.Println("Beginning of conversation.")
			return false, nil
		}
		fmt.Printf("Loaded %d older messages.\n", loaded)
		c.render(mgr)

	case "/send":
		c.mu.Lock()
		if args != "" {
			c.reply = args
		}
		text := c.reply
		c.mu.Unlock()
		if strings.TrimSpace(text) == "" {
			return false, fmt.Errorf("nothing to send")
		}
		if err := mgr.SendReply(ctx, text); err != nil {
			return false, err
		}
		c.mu.Lock()
		c.reply = ""
		c.mu.Unlock()
		color.Green("sent ✓")

	case "/note":
		c.mu.Lock()
		if args != "" {
			c.note = args
		}
		text := c.note
		c.mu.Unlock()
		if strings.TrimSpace(text) == "" {
			return false, fmt.Errorf("usage: /note <text>")
		}
		mgr.OnKeystroke(c.replyText(), text)
		if err := mgr.SendNote(ctx, text); err != nil {
			return false, err
		}
		c.mu.Lock()
		c.note = ""
		c.mu.Unlock()
		color.Yellow("note saved ✓")

	case "/drafts":
		c.mu.Lock()
		reply, note := c.reply, c.note
		c.mu.Unlock()
		if reply == "" && note == "" {
			fmt.Println("No draft text.")
			return false, nil
		}
		if reply != "" {
			fmt.Printf("reply: %s\n", reply)
		}
		if note != "" {
			fmt.Printf("note:  %s\n", note)
		}

	case "/status":
		c.status(mgr)

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}

	return false, nil
}

// open switches the active conversation and renders its timeline.
func (c *console) open(ctx context.Context, mgr *session.Manager, id string) error {
	if err := mgr.SelectConversation(ctx, id); err != nil {
		return err
	}

	// Editor buffers pick up whatever draft was restored for this
	// conversation.
	c.mu.Lock()
	c.reply = c.drafts.Reply()
	c.note = c.drafts.Note()
	restored := c.reply != "" || c.note != ""
	c.mu.Unlock()

	c.render(mgr)
	if restored {
		color.New(color.Faint).Println("draft restored (/drafts to view)")
	}
	if !mgr.Connected() {
		color.Yellow("live updates unavailable; /open %s to reconnect", id)
	}
	return nil
}

func (c *console) replyText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reply
}

func (c *console) render(mgr *session.Manager) {
	tl := mgr.Timeline()
	if len(tl) == 0 {
		fmt.Println("No messages yet.")
		return
	}

	fmt.Println(strings.Repeat("-", 60))
	if !mgr.HistoryExhausted() {
		color.New(color.Faint).Println("... older history available (/older)")
	}
	for _, msg := range tl {
		c.printMessage(msg)
	}
	fmt.Println(strings.Repeat("-", 60))
}

func (c *console) printMessage(msg timeline.Message) {
	prefix := "  "
	switch {
	case msg.Type == timeline.MessageTypeNote:
		prefix = color.YellowString("≡ ")
	case msg.Type == timeline.MessageTypeSystem:
		prefix = color.New(color.Faint).Sprint("· ")
	case msg.Type == timeline.MessageTypeCallInvitation:
		prefix = color.MagentaString("☎ ")
	case msg.Sender == timeline.SenderCustomer:
		prefix = color.BlueString("→ ")
	case msg.Sender == timeline.SenderAgent:
		prefix = color.GreenString("← ")
	}

	var ts string
	if c.profile.Display.Timestamps {
		ts = color.New(color.Faint).Sprint(msg.Timestamp.Local().Format("15:04") + " ")
	}

	text := msg.Content
	if len(text) > c.profile.Display.Truncate {
		text = text[:c.profile.Display.Truncate-3] + "..."
	}
	fmt.Printf("%s%s%s\n", ts, prefix, text)

	for _, att := range msg.Attachments {
		fmt.Printf("    [%s] %s\n", att.Kind, att.Name)
	}
	for _, opt := range msg.Options {
		fmt.Printf("    ○ %s\n", opt)
	}
}

func (c *console) status(mgr *session.Manager) {
	fmt.Printf("state:     %s\n", mgr.State())
	if id := mgr.Active(); id != "" {
		fmt.Printf("open:      %s\n", id)
		fmt.Printf("messages:  %d\n", len(mgr.Timeline()))
		fmt.Printf("exhausted: %t\n", mgr.HistoryExhausted())
	}
	if mgr.Connected() {
		color.Green("live:      connected")
	} else {
		color.Yellow("live:      disconnected")
	}
}

// onMessage renders a pushed message as it lands on the timeline.
func (c *console) onMessage(msg timeline.Message) {
	fmt.Println()
	c.printMessage(msg)
}

func (c *console) onContactRefresh(contactID string) {
	color.New(color.Faint).Printf("\n· contact %s updated\n", contactID)
}

func (c *console) onRemoteTyping(isTyping bool) {
	if isTyping {
		color.New(color.Faint).Println("\n· customer is typing...")
	}
}

func (c *console) onDisconnect(err error) {
	color.Yellow("\n⚠ live channel lost: %v (/open to reconnect)", err)
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /open <id>     Open a conversation")
	fmt.Println("  /older         Load the next older history page")
	fmt.Println("  /send [text]   Send the reply draft (or the given text)")
	fmt.Println("  /note [text]   Save an internal note")
	fmt.Println("  /drafts        Show the current draft buffers")
	fmt.Println("  /status        Show connection and history state")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit")
	fmt.Println()
	fmt.Println("Anything else edits the reply draft for the open conversation.")
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// ABOUTME: Entry point for the attache passkey authentication server
// ABOUTME: Provides serve, init, and health commands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/attache/internal/api"
	"github.com/2389/attache/internal/auth"
	"github.com/2389/attache/internal/challenge"
	"github.com/2389/attache/internal/config"
	"github.com/2389/attache/internal/passkey"
	"github.com/2389/attache/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _   _             _
   __ _| |_| |_ __ _  ___| |__   ___
  / _' | __| __/ _' |/ __| '_ \ / _ \
 | (_| | |_| || (_| | (__| | | |  __/
  \__,_|\__|\__\__,_|\___|_| |_|\___|
`

// getConfigPath returns the path to the server config file.
// Priority: ATTACHE_CONFIG env var > XDG_CONFIG_HOME/attache/server.yaml > ~/.config/attache/server.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ATTACHE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "attache", "server.yaml")
}

// getDataPath returns the path to the attache data directory.
// Priority: XDG_DATA_HOME/attache > ~/.local/share/attache
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "attache")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: attache-server <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the authentication server")
		fmt.Println("  init      Create a new config file interactively")
		fmt.Println("  health    Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger. Components derive their loggers from the default, so
	// this has to happen before anything is constructed.
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	dbPath := cfg.Database.Path
	if envPath := os.Getenv("ATTACHE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", dbPath)
	green.Print("    ▶ ")
	fmt.Printf("RP:       ")
	cyan.Print(cfg.RelyingParty.ID)
	gray.Printf(" (%s)\n", strings.Join(cfg.RelyingParty.Origins, ", "))

	fmt.Println()

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	userCount, err := st.CountUsers(ctx)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("counting users: %w", err)
	}

	logger.Info("starting attache-server",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"rp_id", cfg.RelyingParty.ID,
		"users", userCount,
	)

	// The challenge store shares the main database so any server instance
	// pointed at it can complete a ceremony another instance began.
	challenges, err := challenge.NewSQLiteStore(st.DB(), cfg.Auth.ChallengeTTL)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("creating challenge store: %w", err)
	}

	passkeys, err := passkey.NewService(passkey.Config{
		RPID:          cfg.RelyingParty.ID,
		RPDisplayName: cfg.RelyingParty.Name,
		RPOrigins:     cfg.RelyingParty.Origins,
	}, st, challenges)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("creating passkey service: %w", err)
	}

	issuer := auth.NewIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenLifetime)

	srv := api.NewServer(api.Config{
		Addr:               cfg.Server.HTTPAddr,
		RateLimitPerMinute: cfg.Auth.RateLimitPerMinute,
	}, st, passkeys, issuer)

	runErr := srv.Run(ctx)

	if err := st.Close(); err != nil {
		logger.Error("closing store", "error", err)
	}
	return runErr
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
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("attache-server configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "attache.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Relying party
	fmt.Println("\n--- Relying Party Configuration ---")
	fmt.Println("The RP ID must be a registrable domain suffix of every origin")
	fmt.Println("your frontend is served from (e.g. \"example.com\" for")
	fmt.Println("\"https://app.example.com\").")
	rpID := prompt(reader, "Relying party ID", "localhost")
	rpName := prompt(reader, "Relying party name", config.DefaultRPName)
	originsStr := prompt(reader, "Allowed origins (comma-separated)", "http://localhost:3000")

	var origins []string
	for _, o := range strings.Split(originsStr, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	// Auth
	fmt.Println("\n--- Auth Configuration ---")
	tokenLifetime := prompt(reader, "Session token lifetime", "168h")
	challengeTTL := prompt(reader, "Ceremony challenge TTL", "5m")
	rateLimit := prompt(reader, "Ceremony rate limit per minute (0 disables)", "30")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate a random JWT secret
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# attache-server configuration\n")
	cfg.WriteString("# Generated by attache-server init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("relying_party:\n")
	cfg.WriteString(fmt.Sprintf("  id: \"%s\"\n", rpID))
	cfg.WriteString(fmt.Sprintf("  name: \"%s\"\n", rpName))
	cfg.WriteString("  origins:\n")
	for _, o := range origins {
		cfg.WriteString(fmt.Sprintf("    - \"%s\"\n", o))
	}
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString(fmt.Sprintf("  token_lifetime: \"%s\"\n", tokenLifetime))
	cfg.WriteString(fmt.Sprintf("  challenge_ttl: \"%s\"\n", challengeTTL))
	cfg.WriteString(fmt.Sprintf("  rate_limit_per_minute: %s\n", rateLimit))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file embeds the JWT secret, so keep it owner-only.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  attache-server serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Sources
	SourcesDir  string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Disable     string `long:"disable" env:"DISABLE_SOURCES" description:"Comma-separated source names to skip for this run"`
	Sections    string `long:"sections" env:"SECTIONS" description:"Comma-separated digest section order; unlisted sections follow alphabetically"`
	WorkerCount int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of concurrent source fetches"`
	UserAgent   string `long:"user-agent" env:"USER_AGENT" default:"feed-digest/1.0" description:"User agent string for HTTP requests"`

	// Run
	Watermark string `long:"watermark" env:"WATERMARK" description:"Only items published after this ISO-8601 time are delivered (default: 24h ago)"`
	Schedule  string `long:"schedule" env:"SCHEDULE" default:"0 8 * * *" description:"Cron schedule for daemon mode"`
	Once      bool   `long:"once" env:"ONCE" description:"Run once and exit instead of starting the daemon"`
	DryRun    bool   `long:"dry-run" env:"DRY_RUN" description:"Print the digest to stdout instead of delivering it"`

	// Delivery
	TelegramAPI   string `long:"telegram-api" env:"TELEGRAM_API" default:"https://api.telegram.org" description:"Telegram Bot API base URL"`
	TelegramToken string `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token"`
	ChatID        string `long:"chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat or channel id"`
	ThreadID      int64  `long:"thread-id" env:"TELEGRAM_THREAD_ID" description:"Telegram forum topic id (optional)"`
	ParseMode     string `long:"parse-mode" env:"PARSE_MODE" default:"HTML" choice:"HTML" choice:"MarkdownV2" description:"Message markup dialect"`
	Budget        int    `long:"budget" env:"MESSAGE_BUDGET" default:"3800" description:"Maximum characters per message"`

	// Translation
	TranslateTo    string `long:"translate-to" env:"TRANSLATE_TO" default:"en" description:"Target language for translated titles"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the shared translation cache (optional)"`
	TranslationTTL int    `long:"translation-ttl" env:"TRANSLATION_TTL" default:"168" description:"Translation cache TTL in hours"`

	// Run log and status server
	DBPath       string `long:"db-path" env:"DB_PATH" description:"SQLite run log path (optional)"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP status server port (daemon mode)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for digest timestamps (e.g., UTC, Europe/Berlin)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses args instead of os.Args; nil means os.Args.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SourcesDir:     raw.SourcesDir,
		Disable:        splitList(raw.Disable),
		Sections:       splitList(raw.Sections),
		WorkerCount:    raw.WorkerCount,
		UserAgent:      raw.UserAgent,
		Watermark:      raw.Watermark,
		Schedule:       raw.Schedule,
		Once:           raw.Once,
		DryRun:         raw.DryRun,
		TelegramAPI:    raw.TelegramAPI,
		TelegramToken:  raw.TelegramToken,
		ChatID:         raw.ChatID,
		ThreadID:       raw.ThreadID,
		ParseMode:      raw.ParseMode,
		Budget:         raw.Budget,
		TranslateTo:    raw.TranslateTo,
		RedisAddr:      raw.RedisAddr,
		TranslationTTL: raw.TranslationTTL,
		DBPath:         raw.DBPath,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Location returns the configured timezone, falling back to UTC.
func (c *Cfg) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("Invalid timezone, using UTC", "timezone", c.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

func (c *Cfg) TranslationTTLDuration() time.Duration {
	return time.Duration(c.TranslationTTL) * time.Hour
}

func (c *Cfg) validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker-count must be at least 1, got %d", c.WorkerCount)
	}
	if c.Budget < 1 {
		return fmt.Errorf("budget must be positive, got %d", c.Budget)
	}
	if !c.DryRun && (c.TelegramToken == "" || c.ChatID == "") {
		return fmt.Errorf("telegram-token and chat-id are required unless dry-run is set")
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

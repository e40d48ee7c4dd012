package cfg

type Cfg struct {
	// Sources
	SourcesDir  string
	Disable     []string
	Sections    []string
	WorkerCount int
	UserAgent   string

	// Run
	Watermark string
	Schedule  string
	Once      bool
	DryRun    bool

	// Delivery
	TelegramAPI   string
	TelegramToken string
	ChatID        string
	ThreadID      int64
	ParseMode     string
	Budget        int

	// Translation
	TranslateTo    string
	RedisAddr      string
	TranslationTTL int

	// Run log and status server
	DBPath       string
	Port         string
	APIAccessKey string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

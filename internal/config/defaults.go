package config

// Defaults mirror the Dash User Contributions workflow.
const (
	DefaultPinFile     = "doc-requirements.txt"
	DefaultDocsDir     = "doc"
	DefaultHTMLDir     = "doc/_build/html"
	DefaultIndexPage   = "index.html"
	DefaultGenerator   = "doc2dash"
	DefaultUpstream    = "Kapeli/Dash-User-Contributions"
	DefaultDocsetsDir  = "docsets"
	DefaultCron        = "0 6 * * *"
	DefaultStateDB     = "./docsetbot-data/state.db"
	DefaultAdminAddr   = ":9105"
	DefaultSubject     = "docsetbot.runs"
	DefaultInitialWait = "1s"
	DefaultMaxWait     = "30s"
)

func applyDefaults(cfg *Config) {
	lib := &cfg.Library
	if lib.PinFile == "" {
		lib.PinFile = DefaultPinFile
	}
	if lib.DocsDir == "" {
		lib.DocsDir = DefaultDocsDir
	}
	if lib.HTMLDir == "" {
		lib.HTMLDir = DefaultHTMLDir
	}
	if lib.IndexPage == "" {
		lib.IndexPage = DefaultIndexPage
	}
	if len(lib.BuildCommands) == 0 {
		lib.BuildCommands = []BuildCommand{{Name: "html", Command: []string{"make", "html"}}}
	}
	if cfg.Generator.Binary == "" {
		cfg.Generator.Binary = DefaultGenerator
	}
	if cfg.Aggregator.Upstream == "" {
		cfg.Aggregator.Upstream = DefaultUpstream
	}
	if cfg.Aggregator.DocsetsDir == "" {
		cfg.Aggregator.DocsetsDir = DefaultDocsetsDir
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = DefaultCron
	}
	if cfg.Storage.StateDB == "" {
		cfg.Storage.StateDB = DefaultStateDB
	}
	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffLinear
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = DefaultInitialWait
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = DefaultMaxWait
	}
	if cfg.Monitoring.AdminAddr == "" {
		cfg.Monitoring.AdminAddr = DefaultAdminAddr
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultSubject
	}
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scope selects which parts of the configuration must be present.
type Scope int

const (
	// ScopeBuild covers cloning the documentation source and generating the docset.
	ScopeBuild Scope = 1 << iota
	// ScopeContribute covers forking the aggregator and opening the pull request.
	ScopeContribute
	// ScopeDaemon covers the scheduled loop.
	ScopeDaemon

	ScopeAll = ScopeBuild | ScopeContribute | ScopeDaemon
)

// FieldError names one invalid configuration field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationError collects every problem found by Validate.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Validate reports every missing or malformed field needed for the given scope.
func Validate(cfg *Config, scope Scope) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}
	var problems []FieldError
	add := func(field, reason string) {
		problems = append(problems, FieldError{Field: field, Reason: reason})
	}

	if cfg.Library.Name == "" {
		add("library.name", "required")
	}
	if cfg.Library.Source == "" {
		add("library.source", "required")
	} else if !isRepoRef(cfg.Library.Source) {
		add("library.source", "must be owner/name")
	}
	if cfg.Author.Name == "" {
		add("author.name", "required")
	}

	if scope&ScopeBuild != 0 {
		for i, bc := range cfg.Library.BuildCommands {
			if len(bc.Command) == 0 {
				add(fmt.Sprintf("library.build_commands[%d].command", i), "must not be empty")
			}
			if bc.Dir != "" && !filepath.IsLocal(filepath.FromSlash(bc.Dir)) {
				add(fmt.Sprintf("library.build_commands[%d].dir", i), "must stay inside the checkout")
			}
		}
	}

	if scope&ScopeContribute != 0 {
		if cfg.GitHub.Token == "" {
			add("github.token", "required")
		}
		if !isRepoRef(cfg.Aggregator.Upstream) {
			add("aggregator.upstream", "must be owner/name")
		}
		if cfg.Publisher.Repository != "" && !isRepoRef(cfg.Publisher.Repository) {
			add("publisher.repository", "must be owner/name")
		}
	}

	if scope&ScopeDaemon != 0 {
		if err := gocron.NewDefaultCron(false).IsValid(cfg.Schedule.Cron, time.UTC, time.Now()); err != nil {
			add("schedule.cron", err.Error())
		}
	}

	if cfg.Retry.MaxRetries < 0 {
		add("retry.max_retries", "cannot be negative")
	}
	if !cfg.Retry.Backoff.Valid() {
		add("retry.backoff", "must be fixed, linear or exponential")
	}
	for field, raw := range map[string]string{
		"retry.initial_delay": cfg.Retry.InitialDelay,
		"retry.max_delay":     cfg.Retry.MaxDelay,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			add(field, "must be a positive duration")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Fields: problems}
}

// RetryDelays parses the configured retry delays. Call Validate first.
func (c *Config) RetryDelays() (initial, maxDelay time.Duration) {
	initial, _ = time.ParseDuration(c.Retry.InitialDelay)
	maxDelay, _ = time.ParseDuration(c.Retry.MaxDelay)
	return initial, maxDelay
}

func isRepoRef(s string) bool {
	owner, name, ok := strings.Cut(s, "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}

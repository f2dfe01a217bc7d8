package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docsetbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `version: "1"
library:
  name: seaborn
  source: /mwaskom/seaborn/
author:
  name: Tester
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mwaskom/seaborn", cfg.Library.Source)
	assert.Equal(t, DefaultPinFile, cfg.Library.PinFile)
	assert.Equal(t, DefaultDocsDir, cfg.Library.DocsDir)
	assert.Equal(t, DefaultHTMLDir, cfg.Library.HTMLDir)
	assert.Equal(t, DefaultIndexPage, cfg.Library.IndexPage)
	require.Len(t, cfg.Library.BuildCommands, 1)
	assert.Equal(t, []string{"make", "html"}, cfg.Library.BuildCommands[0].Command)
	assert.Equal(t, DefaultGenerator, cfg.Generator.Binary)
	assert.Equal(t, DefaultUpstream, cfg.Aggregator.Upstream)
	assert.Equal(t, DefaultDocsetsDir, cfg.Aggregator.DocsetsDir)
	assert.Equal(t, DefaultCron, cfg.Schedule.Cron)
	assert.Equal(t, DefaultStateDB, cfg.Storage.StateDB)
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)
	assert.Equal(t, DefaultAdminAddr, cfg.Monitoring.AdminAddr)
	assert.Equal(t, LogLevelInfo, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Monitoring.Logging.Format)
	assert.Equal(t, DefaultSubject, cfg.Events.Subject)
	assert.Empty(t, cfg.Events.NATSURL)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("DOCSETBOT_TEST_TOKEN", "secret-token")
	cfg, err := Parse([]byte(`version: "1"
github:
  token: ${DOCSETBOT_TEST_TOKEN}
retry:
  backoff: EXPONENTIAL
monitoring:
  logging:
    level: Warning
    format: JSON
`))
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.GitHub.Token)
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Backoff)
	assert.Equal(t, LogLevelWarn, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Monitoring.Logging.Format)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	_, err := Parse([]byte(`version: "2.0"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration version")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateReportsEveryField(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"`))
	require.NoError(t, err)

	err = Validate(cfg, ScopeAll)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"library.name", "library.source", "author.name", "github.token"}, fields)
}

func TestValidateTokenOnlyForContribute(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"
library:
  name: seaborn
  source: mwaskom/seaborn
author:
  name: Tester
`))
	require.NoError(t, err)

	assert.NoError(t, Validate(cfg, ScopeBuild))
	assert.Error(t, Validate(cfg, ScopeContribute))
}

func TestValidateScheduleAndRetry(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"
library:
  name: seaborn
  source: mwaskom/seaborn
author:
  name: Tester
schedule:
  cron: "not a cron"
retry:
  max_retries: -1
  initial_delay: soon
  backoff: random
`))
	require.NoError(t, err)

	err = Validate(cfg, ScopeDaemon)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "schedule.cron")
	assert.Contains(t, err.Error(), "retry.max_retries")
	assert.Contains(t, err.Error(), "retry.initial_delay")
	assert.Contains(t, err.Error(), "retry.backoff")
}

func TestUnknownBackoffIsReportedNotDefaulted(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"
library:
  name: seaborn
  source: mwaskom/seaborn
author:
  name: Tester
retry:
  backoff: " Random "
`))
	require.NoError(t, err)
	assert.Equal(t, RetryBackoffMode("random"), cfg.Retry.Backoff)
	assert.False(t, cfg.Retry.Backoff.Valid())

	err = Validate(cfg, ScopeBuild)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "retry.backoff")
}

func TestValidateBuildCommandDir(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"
library:
  name: seaborn
  source: mwaskom/seaborn
  build_commands:
    - name: ok
      dir: .
      command: ["make", "html"]
    - name: escape
      dir: ../elsewhere
      command: ["make", "html"]
author:
  name: Tester
`))
	require.NoError(t, err)

	err = Validate(cfg, ScopeBuild)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "library.build_commands[1].dir")
	assert.NotContains(t, err.Error(), "library.build_commands[0].dir")
}

func TestRetryDelays(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1"
retry:
  initial_delay: 250ms
  max_delay: 5s
`))
	require.NoError(t, err)
	initial, maxDelay := cfg.RetryDelays()
	assert.Equal(t, "250ms", initial.String())
	assert.Equal(t, "5s", maxDelay.String())
}

func TestInitWritesLoadableConfig(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	path := filepath.Join(t.TempDir(), "nested", "docsetbot.yaml")

	require.NoError(t, Init(path, false))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "seaborn", cfg.Library.Name)
	require.Len(t, cfg.Library.BuildCommands, 4)
	install, data, notebooks := cfg.Library.BuildCommands[0], cfg.Library.BuildCommands[1], cfg.Library.BuildCommands[2]
	assert.Equal(t, ".", install.Dir)
	assert.Contains(t, install.Command, ".[stats,docs]")
	assert.Contains(t, data.Command, "{checkout}/seaborn-data")
	assert.Equal(t, "python", notebooks.Env["NB_KERNEL"])
	assert.Equal(t, "{checkout}/seaborn-data", notebooks.Env["SEABORN_DATA"])
	assert.Equal(t, "_static/logo-mark-lightbg.png", cfg.Library.Icon)
	assert.NoError(t, Validate(cfg, ScopeAll))

	err = Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.NoError(t, Init(path, true))
}

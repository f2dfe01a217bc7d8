package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const exampleConfig = `version: "1"

# Documentation source the docset is built from.
library:
  name: seaborn
  source: mwaskom/seaborn
  pin_file: doc-requirements.txt
  docs_dir: doc
  html_dir: doc/_build/html
  # Commands run in docs_dir unless dir (relative to the checkout) is set.
  # {checkout} expands to the absolute path of the source checkout.
  build_commands:
    - name: install
      dir: .
      command: ["python", "-m", "pip", "install", ".[stats,docs]"]
    - name: seaborn-data
      dir: .
      command: ["git", "clone", "--depth=1", "https://github.com/mwaskom/seaborn-data.git", "{checkout}/seaborn-data"]
    - name: notebooks
      command: ["make", "notebooks"]
      env:
        MPLBACKEND: Agg
        NB_KERNEL: python
        SEABORN_DATA: "{checkout}/seaborn-data"
    - name: html
      command: ["make", "html"]
      env:
        MPLBACKEND: Agg
        SEABORN_DATA: "{checkout}/seaborn-data"
  index_page: index.html
  online_redirect_url: https://seaborn.pydata.org/
  icon: _static/logo-mark-lightbg.png   # empty = discovered from the index page
  aliases: []

generator:
  binary: doc2dash

aggregator:
  upstream: Kapeli/Dash-User-Contributions
  docsets_dir: docsets

author:
  name: Your Name
  url: https://github.com/your-user
  email: you@example.com

publisher:
  repository: your-user/docsets

github:
  token: ${GITHUB_TOKEN}

schedule:
  cron: "0 6 * * *"

storage:
  state_db: ./docsetbot-data/state.db
  # workspace: ./docsetbot-data/work   # empty = temporary directory per run

retry:
  max_retries: 2
  initial_delay: 1s
  max_delay: 30s
  backoff: linear

monitoring:
  admin_addr: ":9105"
  logging:
    level: info
    format: text

events:
  # nats_url: nats://localhost:4222
  subject: docsetbot.runs
`

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "auditwise"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage auditwise configuration.

Running bare 'auditwise config' is the same as 'auditwise config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# auditwise configuration
# See: auditwise config show (for effective values and sources)

# State/data directory (default: ~/.config/auditwise)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/auditwise/auditwise.db)
# db_path: {{ .DBPath }}

# AI analysis
ai:
  # Provider: gemini or anthropic (default: gemini)
  provider: "{{ .AIProvider }}"

  # API key; without one scans show the sample issue set.
  # Prefer the AUDITWISE_AI_API_KEY environment variable.
  api_key: ""

  # Models tried in order (default: provider's built-in chain)
  # models: [gemini-2.0-flash, gemini-1.5-flash]

  # Per-model request timeout, 0 for none (default: 0s)
  attempt_timeout: "{{ .AIAttemptTimeout }}"

# Figma
figma:
  # Personal access token used when a scan does not pass one
  token: ""

# HTTP server
server:
  # Port for 'auditwise serve' (default: 8080)
  port: {{ .ServerPort }}

  # Public base URL used in share links (default: derived from requests)
  public_url: "{{ .ServerPublicURL }}"

  # Idle time after which a finished review session is dropped (default: 1h)
  session_ttl: "{{ .ServerSessionTTL }}"

# API identity
auth:
  # HS256 secret for bearer tokens; empty runs single-user
  jwt_secret: ""

user:
  # Owner of audits in single-user mode (default: local)
  id: "{{ .UserID }}"
`

type configTemplateData struct {
	StateDir         string
	DBPath           string
	AIProvider       string
	AIAttemptTimeout string
	ServerPort       int
	ServerPublicURL  string
	ServerSessionTTL string
	UserID           string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:         viper.GetString("state_dir"),
		DBPath:           viper.GetString("db_path"),
		AIProvider:       viper.GetString("ai.provider"),
		AIAttemptTimeout: viper.GetDuration("ai.attempt_timeout").String(),
		ServerPort:       viper.GetInt("server.port"),
		ServerPublicURL:  viper.GetString("server.public_url"),
		ServerSessionTTL: viper.GetDuration("server.session_ttl").String(),
		UserID:           viper.GetString("user.id"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "AUDITWISE_STATE_DIR"},
	{Key: "db_path", EnvVar: "AUDITWISE_DB_PATH"},
	{Key: "ai.provider", EnvVar: "AUDITWISE_AI_PROVIDER"},
	{Key: "ai.api_key", EnvVar: "AUDITWISE_AI_API_KEY", Secret: true},
	{Key: "ai.models", EnvVar: "AUDITWISE_AI_MODELS"},
	{Key: "ai.attempt_timeout", EnvVar: "AUDITWISE_AI_ATTEMPT_TIMEOUT"},
	{Key: "figma.token", EnvVar: "AUDITWISE_FIGMA_TOKEN", Secret: true},
	{Key: "figma.base_url", EnvVar: "AUDITWISE_FIGMA_BASE_URL"},
	{Key: "server.port", EnvVar: "AUDITWISE_SERVER_PORT"},
	{Key: "server.public_url", EnvVar: "AUDITWISE_SERVER_PUBLIC_URL"},
	{Key: "server.session_ttl", EnvVar: "AUDITWISE_SERVER_SESSION_TTL"},
	{Key: "auth.jwt_secret", EnvVar: "AUDITWISE_AUTH_JWT_SECRET", Secret: true},
	{Key: "user.id", EnvVar: "AUDITWISE_USER_ID"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// maskSecret hides all but the last four characters of a credential.
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'auditwise config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

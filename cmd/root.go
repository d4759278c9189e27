package cmd

import (
	"fmt"
	"os"

	"github.com/lenormf/vk-chat/internal"
	"github.com/lenormf/vk-chat/internal/vkapi"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	tokenFlag  string
	dbPath     string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// newRemoteAPI builds the API client used by every command; tests replace it
var newRemoteAPI = func(cfg *internal.Config) internal.RemoteAPI {
	return vkapi.NewClient(cfg.APIBaseURL, cfg.APIVersion, cfg.Token)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vkchat",
	Short: "Chat with your VK friends from the terminal",
	Long: `A terminal client for VK private messages.

vkchat keeps a long-poll connection to VK's message server and prints every
unread message from a friend in its own conversation, acknowledging it as read.

Features:
  • Live incoming messages grouped by conversation
  • Unread dialogs shown on startup
  • Sending messages from the command line or interactively
  • Local history with read-receipt tracking
  • Export of a conversation (JSONL, Markdown, YAML, JSON)

Quick Start:
  vkchat poll --token <token>        # Follow incoming messages
  vkchat friends ivan                # Find a friend's user id
  vkchat send ivan petrov "privet"   # Send a message
  vkchat history                     # List stored conversations`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: $XDG_CONFIG_HOME/vkchat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "VK access token (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the history database (overrides the config file)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// resolveConfigPath returns --config or the default location
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	paths, err := internal.DetectAppPaths()
	if err != nil {
		return "", fmt.Errorf("failed to locate the config directory: %w", err)
	}
	return paths.ConfigPath(), nil
}

// loadConfig reads the config file and applies the command line overrides
func loadConfig() (*internal.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	if tokenFlag != "" {
		cfg.Token = tokenFlag
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	return cfg, path, nil
}

// requireToken fails early when no token is configured
func requireToken(cfg *internal.Config, path string) error {
	if cfg.Token == "" {
		return fmt.Errorf("no access token: set \"token\" in %s or pass --token", path)
	}
	return nil
}

// openStore opens the history database of cfg
func openStore(cfg *internal.Config) (*internal.MessageStore, error) {
	store, err := internal.OpenMessageStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// contactLoader returns a loader backed by the configured contact cache
func contactLoader(cfg *internal.Config, api internal.FriendSource) *internal.ContactLoader {
	var cache *internal.ContactCache
	if cfg.CacheDir != "" {
		cache = internal.NewContactCache(cfg.CacheDir)
	}
	return internal.NewContactLoader(api, cache, cfg.ContactsTTL.Std())
}

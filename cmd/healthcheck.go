package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lenormf/vk-chat/internal"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
	healthcheckOffline bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that vkchat is configured and can reach VK",
	Long: `Check the health of vkchat by verifying:
  • Config file loading and validation
  • Access token presence
  • History database access
  • Contact cache state
  • Token validity against the API (skipped with --offline)

This command is useful for debugging setup issues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 vkchat Health Check"))
		fmt.Fprintln(out)

		// Step 1: Load config
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		cfg, path, err := loadConfig()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to load configuration:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Config file: %s\n", path)
			fmt.Fprintf(out, "   API: %s (v%s)\n", cfg.APIBaseURL, cfg.APIVersion)
			fmt.Fprintf(out, "   Poll interval: %s\n", cfg.PollInterval.Std())
		}
		fmt.Fprintln(out)

		// Step 2: Token
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking access token..."))
		hasToken := cfg.Token != ""
		if hasToken {
			fmt.Fprintln(out, successStyle.Render("✅ Access token configured"))
		} else {
			fmt.Fprintln(out, warningStyle.Render("⚠️  No access token"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   Set \"token\" in %s or pass --token\n", path)
			}
		}
		fmt.Fprintln(out)

		// Step 3: History database
		fmt.Fprintln(out, infoStyle.Render("Step 3: Checking history database..."))
		store, err := openStore(cfg)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to open the history database:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		defer store.Close()
		summaries, err := store.Conversations(cmd.Context())
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to read the history:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		if missing, err := missingTables(store.Path()); err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to inspect the history schema:"), err)
			return fmt.Errorf("health check failed: %w", err)
		} else if len(missing) > 0 {
			fmt.Fprintln(out, errorStyle.Render("❌ History schema incomplete, missing tables:"), strings.Join(missing, ", "))
			return fmt.Errorf("health check failed: missing tables %s", strings.Join(missing, ", "))
		}
		pending, _ := store.PendingReceipts(cmd.Context())
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ History database ready (%d conversation(s))", len(summaries))))
		if len(pending) > 0 {
			fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("⚠️  %d read receipt(s) still pending", len(pending))))
		}
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Database: %s\n", store.Path())
		}
		fmt.Fprintln(out)

		// Step 4: Contact cache
		fmt.Fprintln(out, infoStyle.Render("Step 4: Checking contact cache..."))
		cache := internal.NewContactCache(cfg.CacheDir)
		if index, err := cache.LoadIndex(); err != nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  No contact cache yet"))
		} else if cache.IsCacheValid(cfg.ContactsTTL.Std()) {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ %d cached friend(s)", index.Metadata.Count)))
		} else {
			fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("⚠️  Contact cache is stale (%d friend(s), fetched %s)", index.Metadata.Count, since(index.Metadata.FetchedAt))))
		}
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Cache: %s\n", cache.GetIndexPath())
		}
		fmt.Fprintln(out)

		// Step 5: Token validity
		authOK := false
		if hasToken && !healthcheckOffline {
			fmt.Fprintln(out, infoStyle.Render("Step 5: Authenticating..."))
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			self, err := newRemoteAPI(cfg).Authenticate(ctx)
			cancel()
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("❌ Authentication failed:"), err)
			} else {
				authOK = true
				fmt.Fprintln(out, successStyle.Render("✅ Authenticated as "+self.Title()))
			}
			fmt.Fprintln(out)
		}

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)

		switch {
		case !hasToken:
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			fmt.Fprintln(out, "   • No access token is configured")
			return fmt.Errorf("health check failed: no access token")
		case healthcheckOffline:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Local setup looks fine, token not verified"))
			return nil
		case !authOK:
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			fmt.Fprintln(out, "   • The access token was rejected or VK is unreachable")
			return fmt.Errorf("health check failed: authentication failed")
		default:
			fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
			return nil
		}
	},
}

// missingTables opens the history read-only and lists the tables it lacks
func missingTables(path string) ([]string, error) {
	db, err := internal.OpenDatabase(path, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var missing []string
	for _, table := range []string{"messages", "read_receipts"} {
		ok, err := internal.TableExists(db, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckVerbose, "details", "d", false, "Show detailed diagnostic information")
	healthcheckCmd.Flags().BoolVar(&healthcheckOffline, "offline", false, "Skip the token check against the API")
}

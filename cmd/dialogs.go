package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/lenormf/vk-chat/internal"
	"github.com/spf13/cobra"
)

var dialogsMarkRead bool

const previewLength = 40

// dialogsCmd represents the dialogs command
var dialogsCmd = &cobra.Command{
	Use:   "dialogs",
	Short: "Show unread dialogs",
	Long: `List the last unread message of each dialog with a friend.

With --read the messages are printed in their conversations and marked as read,
as 'vkchat poll' does on startup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireToken(cfg, path); err != nil {
			return err
		}
		ctx := cmd.Context()

		api := newRemoteAPI(cfg)
		contacts := internal.NewContactDirectory(nil)
		if _, err := contactLoader(cfg, api).Refresh(ctx, contacts, false); err != nil {
			return err
		}

		if dialogsMarkRead {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			router := internal.NewRouter(internal.NewTerminalSink(cmd.OutOrStdout()), api).WithLedger(store)
			report := internal.ShowUnreadDialogs(ctx, api, contacts, router)
			internal.PrintInfo(fmt.Sprintf("%d message(s) in %d conversation(s) marked as read", report.Delivered, report.Conversations))
			return nil
		}

		dialogs, err := api.GetDialogs(ctx, true)
		if err != nil {
			return &internal.RemoteCallError{Method: "messages.getDialogs", Err: err}
		}

		var rows [][]string
		for _, m := range dialogs {
			if m.Outgoing {
				continue
			}
			name := strconv.FormatInt(m.UserID, 10)
			if c, ok := contacts.Lookup(m.UserID); ok {
				name = c.Title()
			}
			rows = append(rows, []string{name, humanize.Time(m.Time()), preview(m)})
		}
		if len(rows) == 0 {
			internal.PrintInfo("No unread dialogs")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			Headers("FROM", "RECEIVED", "MESSAGE").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Rows(rows...)
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

// preview shortens a message body for listings
func preview(m internal.ChatMessage) string {
	body := []rune(m.Body)
	text := m.Body
	if len(body) > previewLength {
		text = string(body[:previewLength-1]) + "…"
	}
	if m.HasAttachment {
		if text == "" {
			return "[attachment]"
		}
		text += " [attachment]"
	}
	return text
}

// since renders t relative to now, or "-" for the zero time
func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func init() {
	rootCmd.AddCommand(dialogsCmd)
	dialogsCmd.Flags().BoolVar(&dialogsMarkRead, "read", false, "Print the messages in their conversations and mark them as read")
}

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lenormf/vk-chat/internal"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [user id]",
	Short: "Show the local message history",
	Long: `Without argument, list the conversations stored in the local history, most
recent first. With a user id, print the last messages exchanged with that user.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		ctx := cmd.Context()

		if len(args) == 1 {
			uid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			conv, err := store.History(ctx, uid, historyLimit)
			if err != nil {
				return err
			}
			if len(conv.Messages) == 0 {
				internal.PrintInfo(fmt.Sprintf("No messages with user %d", uid))
				return nil
			}
			sink := internal.NewTerminalSink(cmd.OutOrStdout())
			for _, m := range conv.Messages {
				if err := sink.AppendMessage(m.Conversation, m.TimestampSec, senderLabel(m), m.Body, m.Outgoing); err != nil {
					return err
				}
			}
			return nil
		}

		summaries, err := store.Conversations(ctx)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			internal.PrintInfo("No conversations yet")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			Headers("USER ID", "CONVERSATION", "MESSAGES", "LAST", "UNREAD RECEIPTS").
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				case col == 0:
					return idStyle.Padding(0, 1)
				default:
					return cellStyle
				}
			})
		for _, s := range summaries {
			t.Row(
				strconv.FormatInt(s.UserID, 10),
				s.Conversation,
				strconv.Itoa(s.MessageCount),
				since(s.LastAt),
				strconv.Itoa(s.Unacked),
			)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

// senderLabel is "me" for sent messages and the first name of the conversation otherwise
func senderLabel(m internal.StoredMessage) string {
	if m.Outgoing {
		return "me"
	}
	if fields := strings.Fields(m.Conversation); len(fields) > 0 {
		return fields[0]
	}
	return strconv.FormatInt(m.UserID, 10)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Number of messages to print (0 prints everything)")
}

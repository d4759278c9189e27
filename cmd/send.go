package cmd

import (
	"fmt"
	"strings"

	"github.com/lenormf/vk-chat/internal"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <user id | first name [last name]> <message>",
	Short: "Send a message to a friend",
	Long: `Send a message to a friend given by user id or by name patterns.

The name patterns work as in 'vkchat friends' and must match exactly one
friend; the candidates are listed otherwise. The message is recorded in the
local history.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireToken(cfg, path); err != nil {
			return err
		}
		ctx := cmd.Context()

		text := args[len(args)-1]
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("empty message")
		}

		api := newRemoteAPI(cfg)
		contacts := internal.NewContactDirectory(nil)
		if _, err := contactLoader(cfg, api).Refresh(ctx, contacts, false); err != nil {
			return err
		}

		contact, candidates, err := internal.ResolveRecipient(contacts, args[:len(args)-1])
		if err != nil {
			if len(candidates) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), contactTable(internal.Suggestions(candidates, cfg.MaxFriendsSuggestions)))
			}
			return err
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		outbox := internal.NewOutbox(api, internal.NewTerminalSink(cmd.OutOrStdout()), store)
		msg, err := outbox.Send(ctx, contact, text)
		if err != nil {
			return err
		}
		internal.LogDebug("Sent message %d to %s", msg.ID, contact.Title())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lenormf/vk-chat/internal"
	"github.com/spf13/cobra"
)

var (
	pollQuiet       bool
	pollInteractive bool
	pollNoDialogs   bool
)

// pollInput is where interactive lines are read from; tests replace it
var pollInput io.Reader = os.Stdin

// pollCmd represents the poll command
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Follow incoming messages",
	Long: `Connect to VK's long-poll server and print incoming messages from friends,
one conversation per friend, marking them as read once shown.

Unread dialogs are printed first. With --interactive, lines typed on stdin as
"<user id> <text>" are sent to that friend. Editing the token in the config
file while polling re-authenticates without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if written, err := internal.SetDefaults(path); err != nil {
			internal.LogWarn("Failed to write default config: %v", err)
		} else if written {
			internal.LogInfo("Edit %s to set your token", path)
		}
		if err := requireToken(cfg, path); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		api := newRemoteAPI(cfg)
		self, err := authenticate(ctx, api, cfg.AuthRetryInterval.Std())
		if err != nil {
			return err
		}
		internal.LogInfo("Authenticated as %s", self.Title())

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		contacts := internal.NewContactDirectory(nil)
		loader := contactLoader(cfg, api)
		if n, err := loader.Refresh(ctx, contacts, false); err != nil {
			internal.LogWarn("Unable to get a list of friends: %v", err)
		} else {
			internal.LogInfo("Loaded %d friend(s)", n)
		}

		var sink internal.Sink = internal.NewTerminalSink(cmd.OutOrStdout())
		if pollQuiet {
			sink = internal.NewMemorySink()
		}
		router := internal.NewRouter(sink, api).WithLedger(store)

		if !pollNoDialogs {
			report := internal.ShowUnreadDialogs(ctx, api, contacts, router)
			internal.LogDebug("Unread dialogs: %d message(s) in %d conversation(s)", report.Delivered, report.Conversations)
		}

		session := internal.NewLongPollSession(api, cfg.LongPollOptions())
		poller := internal.NewPoller(session, router, contacts, cfg.PollInterval.Std())

		if tokenFlag == "" {
			watchToken(ctx, path, cfg.Token, api, loader, contacts, session)
		}

		if pollInteractive {
			outbox := internal.NewOutbox(api, sink, store)
			go readOutgoing(ctx, pollInput, contacts, outbox)
		}

		internal.LogInfo("Polling for new messages every %s", poller.Interval())
		err = poller.Run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	},
}

// authenticate retries until the token is accepted or ctx is done
func authenticate(ctx context.Context, api internal.RemoteAPI, retry time.Duration) (*internal.Contact, error) {
	if retry <= 0 {
		retry = time.Minute
	}
	for {
		self, err := api.Authenticate(ctx)
		if err == nil {
			return self, nil
		}
		internal.LogError("Unable to authenticate, retrying in %s: %v", retry, &internal.RemoteCallError{Method: "users.get", Err: err})

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("authentication aborted: %w", ctx.Err())
		case <-time.After(retry):
		}
	}
}

// watchToken re-authenticates when the token in the config file changes
func watchToken(ctx context.Context, path, token string, api internal.RemoteAPI, loader *internal.ContactLoader, contacts *internal.ContactDirectory, session *internal.LongPollSession) {
	watcher, err := internal.NewConfigWatcher(path, token)
	if err != nil {
		internal.LogWarn("Not watching %s for token changes: %v", path, err)
		return
	}
	updates := watcher.Watch(ctx)

	go func() {
		for cfg := range updates {
			internal.LogInfo("Token changed, authenticating again")
			api.SetToken(cfg.Token)
			if _, err := api.Authenticate(ctx); err != nil {
				internal.LogError("Unable to authenticate with the new token: %v", err)
				continue
			}
			if _, err := loader.Refresh(ctx, contacts, true); err != nil {
				internal.LogWarn("Unable to get a list of friends: %v", err)
			}
			// the long-poll key belongs to the old token
			session.Reset()
		}
	}()
}

// readOutgoing sends "<user id> <text>" lines until in is exhausted or ctx is done
func readOutgoing(ctx context.Context, in io.Reader, contacts *internal.ContactDirectory, outbox *internal.Outbox) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		uid, text, err := internal.ParseOutgoingLine(line)
		if err != nil {
			internal.PrintError(err.Error())
			continue
		}
		contact, ok := contacts.Lookup(uid)
		if !ok {
			internal.PrintError(fmt.Sprintf("user %d is not in the friend list", uid))
			continue
		}
		if _, err := outbox.Send(ctx, contact, text); err != nil {
			internal.PrintError(err.Error())
		}
	}
	if err := scanner.Err(); err != nil {
		internal.LogWarn("Stopped reading input: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().BoolVarP(&pollQuiet, "quiet", "q", false, "Do not print messages, only record them")
	pollCmd.Flags().BoolVarP(&pollInteractive, "interactive", "i", false, "Send \"<user id> <text>\" lines read from stdin")
	pollCmd.Flags().BoolVar(&pollNoDialogs, "no-dialogs", false, "Do not print unread dialogs on startup")
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/lenormf/vk-chat/internal"
	"github.com/spf13/cobra"
)

var (
	friendsRefresh    bool
	friendsClearCache bool
	friendsLimit      int
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

// friendsCmd represents the friends command
var friendsCmd = &cobra.Command{
	Use:   "friends [first name] [last name]",
	Short: "Find friends by name",
	Long: `List the friends whose first and last names start with the given patterns.

Patterns are case-insensitive regular expressions anchored at the start of the
name; an omitted pattern matches every name. Use the printed user id with
'vkchat send' or the interactive mode of 'vkchat poll'.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireToken(cfg, path); err != nil {
			return err
		}

		var first, last string
		if len(args) > 0 {
			first = args[0]
		}
		if len(args) > 1 {
			last = args[1]
		}

		if friendsClearCache && cfg.CacheDir != "" {
			if err := internal.NewContactCache(cfg.CacheDir).ClearCache(); err != nil {
				return &internal.StorageError{Path: cfg.CacheDir, Op: "clear", Err: err}
			}
			internal.LogInfo("Cleared the contact cache")
		}

		api := newRemoteAPI(cfg)
		contacts := internal.NewContactDirectory(nil)
		err = internal.ShowProgress(cmd.Context(), "Loading friends", func() error {
			_, err := contactLoader(cfg, api).Refresh(cmd.Context(), contacts, friendsRefresh)
			return err
		})
		if err != nil {
			return err
		}

		limit := cfg.MaxFriendsSuggestions
		if cmd.Flags().Changed("limit") {
			limit = friendsLimit
		}
		matches := contacts.Match(first, last)
		suggestions := internal.Suggestions(matches, limit)
		if len(suggestions) == 0 {
			internal.PrintWarning(fmt.Sprintf("No friend matches %q %q", first, last))
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), contactTable(suggestions))
		if len(matches) > len(suggestions) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s of %s matches shown\n",
				countStyle.Render(strconv.Itoa(len(suggestions))), countStyle.Render(strconv.Itoa(len(matches))))
		}
		return nil
	},
}

// contactTable renders contacts as a table of id, name and nickname
func contactTable(contacts []internal.Contact) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "NAME", "NICKNAME").
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
	for _, c := range contacts {
		t.Row(strconv.FormatInt(c.ID, 10), c.Title(), c.Nickname)
	}
	return t.Render()
}

func init() {
	rootCmd.AddCommand(friendsCmd)
	friendsCmd.Flags().BoolVar(&friendsRefresh, "refresh", false, "Ignore the contact cache and fetch the friend list")
	friendsCmd.Flags().BoolVar(&friendsClearCache, "clear-cache", false, "Delete the contact cache before loading the friend list")
	friendsCmd.Flags().IntVarP(&friendsLimit, "limit", "n", 0, "Maximum number of suggestions (default: max_friends_suggestions)")
}

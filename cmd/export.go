package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lenormf/vk-chat/internal"
	"github.com/lenormf/vk-chat/internal/export"
	"github.com/spf13/cobra"
)

var (
	format      string
	outputDir   string
	exportUsers []int64
	exportLimit int
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export conversations to file",
	Long: `Export stored conversations to various formats (jsonl, md, yaml, json).

You can export every conversation of the local history or only the ones with
the users given by --user. Use 'vkchat history' to see the stored conversations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Create exporter
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

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

		users := exportUsers
		if len(users) == 0 {
			summaries, err := store.Conversations(ctx)
			if err != nil {
				return err
			}
			for _, s := range summaries {
				users = append(users, s.UserID)
			}
		}
		if len(users) == 0 {
			internal.PrintWarning("Nothing to export: the history is empty")
			return nil
		}

		// Ensure output directory exists
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return &internal.ExportError{Format: format, Path: outputDir, Err: err}
		}

		exported := 0
		err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting %d conversation(s) to %s", len(users), outputDir), func() error {
			for _, uid := range users {
				conv, err := store.History(ctx, uid, exportLimit)
				if err != nil {
					return err
				}
				if len(conv.Messages) == 0 {
					internal.LogWarn("No messages with user %d, skipping", uid)
					continue
				}

				path := filepath.Join(outputDir, "conversation_"+strconv.FormatInt(uid, 10)+"."+exporter.Extension())
				if err := writeExport(exporter, conv, path); err != nil {
					internal.LogError("%v", err)
					continue
				}
				exported++
			}
			return nil
		})
		if err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Export complete: %d conversation(s) exported to %s", exported, outputDir))
		return nil
	},
}

// writeExport writes conv to path with exporter
func writeExport(exporter export.Exporter, conv *internal.Conversation, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := exporter.Export(conv, file); err != nil {
		_ = file.Close()
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().Int64SliceVarP(&exportUsers, "user", "u", nil, "Export only the conversation with this user id (repeatable)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Export only the last N messages of each conversation (0 exports everything)")
}

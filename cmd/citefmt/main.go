// citefmt renders citation-marked response text for sharing and inspects the
// markers a text contains. Attachments are supplied as the JSON array the
// pipeline persists.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helixchat/citations/internal/citations"
	"github.com/helixchat/citations/internal/export"
	"github.com/helixchat/citations/internal/markers"
)

var (
	attachmentsPath string
	openDelim       string
	closeDelim      string
)

var rootCmd = &cobra.Command{
	Use:           "citefmt",
	Short:         "Render and inspect citation markers in response text",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Replace markers with sequence numbers and append the reference list",
	Long: `Render reads response text from a file (or stdin when no file is given),
replaces every citation marker with its sequence numbers, and appends the
numbered reference list. Markers that resolve to nothing are stripped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args)
		if err != nil {
			return err
		}
		atts, err := loadAttachments(attachmentsPath)
		if err != nil {
			return err
		}

		f := export.Formatter{Grammar: grammar()}
		out, stats := f.FormatWithStats(text, export.GroupsFromAttachments(atts))
		fmt.Fprint(cmd.OutOrStdout(), out)

		if stats.MarkersStripped > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "citefmt: stripped %d unresolvable marker(s)\n", stats.MarkersStripped)
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "List the markers found in response text",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args)
		if err != nil {
			return err
		}

		for _, m := range grammar().Scan(text) {
			fmt.Fprintf(cmd.OutOrStdout(), "offset %d\t%s\n", m.Offset, m.Text)
			for _, ref := range m.Refs {
				fmt.Fprintf(cmd.OutOrStdout(), "\tturn=%d source=%s index=%d\n", ref.Turn, ref.SourceKey, ref.Index)
			}
		}
		return nil
	},
}

func grammar() markers.Grammar {
	return markers.Grammar{Open: openDelim, Close: closeDelim}
}

func readInput(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

func loadAttachments(path string) ([]citations.Attachment, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachments: %w", err)
	}
	var atts []citations.Attachment
	if err := json.Unmarshal(data, &atts); err != nil {
		return nil, fmt.Errorf("parse attachments: %w", err)
	}
	return atts, nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "citefmt: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rootCmd.PersistentFlags().StringVar(&openDelim, "open", markers.Default.Open, "marker opening delimiter")
	rootCmd.PersistentFlags().StringVar(&closeDelim, "close", markers.Default.Close, "marker closing delimiter")
	renderCmd.Flags().StringVarP(&attachmentsPath, "attachments", "a", "", "JSON file with the attachment array backing the markers")
	rootCmd.AddCommand(renderCmd, scanCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}

// Package searchcmder provides the search command for retrieving passages
// without answer synthesis.
package searchcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/client"
	"github.com/passagehq/passage/pkg/config"
	"github.com/passagehq/passage/pkg/logger"
	"github.com/passagehq/passage/pkg/rag"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	chunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query      string
	topK       uint
	threshold  float64
	documentID string
	apiTarget  string
	quiet      bool

	debug  bool
	logger *zap.Logger
}

const searchLongDesc string = `Search the ingested documents.

Retrieves the passages most similar to the query, ranked by similarity score,
without synthesizing an answer. Requires a running passage API server
('passage serve').

Use --quiet to output only chunk IDs, one per line, for piping into other
commands.

Examples:
  passage search "quarterly revenue"
  passage search "error handling" --top-k 10
  passage search "incident timeline" --document postmortem.md
  passage search "budget" --quiet`

const searchShortDesc string = "Search ingested documents"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			if !cmd.Flags().Changed("top-k") {
				cmder.topK = cfg.Retrieval.TopK
			}
			if !cmd.Flags().Changed("threshold") {
				cmder.threshold = cfg.Retrieval.Threshold
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	config.AddFloat64Flag(cmd, config.Flags, config.FlagThreshold, &cmder.threshold)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVar(&cmder.documentID, "document", "", "restrict results to a single document ID")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "output only chunk IDs, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cli, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	output, err := cli.Search(ctx, c.query, int(c.topK), c.threshold, c.documentID)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, item := range output.Results {
			fmt.Println(item.ChunkID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Search results for:"),
		chunkStyle.Render(fmt.Sprintf("%q", output.Query)),
	)

	for _, item := range output.Results {
		printResult(item)
	}

	return nil
}

func printResult(item rag.EvidenceItem) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", item.Rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", item.Score)),
		chunkStyle.Render(item.ChunkID),
	)

	preview := strings.ReplaceAll(item.Text, "\n", " ")
	if len(preview) > 160 {
		preview = preview[:157] + "..."
	}

	fmt.Printf("  %s\n", previewStyle.Render(preview))
	fmt.Printf("  %s\n\n", dimStyle.Render("document: "+item.DocumentID))
}

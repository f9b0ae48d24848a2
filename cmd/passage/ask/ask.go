// Package askcmder provides the ask command for grounded question answering
// via the passage API.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/passagehq/passage/api"
	"github.com/passagehq/passage/pkg/client"
	"github.com/passagehq/passage/pkg/cliui"
	"github.com/passagehq/passage/pkg/config"
	"github.com/passagehq/passage/pkg/logger"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/utils"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	rankStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type askCommander struct {
	question  string
	topK      uint
	threshold float64
	apiTarget string
	plain     bool

	debug  bool
	logger *zap.Logger
}

const askLongDesc string = `Ask a question over the ingested documents.

Retrieves the most relevant passages and synthesizes an answer grounded in
them, rendered as markdown with inline citations back to the source chunks.
Requires a running passage API server ('passage serve').

When the generation backend is unavailable the retrieved passages are shown
raw, so the evidence is never lost to a degraded backend.

Examples:
  passage ask "who approved the budget?"
  passage ask "what changed in Q3?" --top-k 10
  passage ask "summarize the incident" --api-target http://localhost:9090`

const askShortDesc string = "Ask a question over ingested documents"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
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
			cmder.question = args[0]

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
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "print the raw answer text without markdown rendering")

	return cmd
}

func (c *askCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cli, err := client.New(c.apiTarget)
	if err != nil {
		return err
	}

	var answer *rag.Answer
	err = cliui.Step(os.Stdout, "Synthesizing answer", func() error {
		var qerr error
		answer, qerr = cli.Query(ctx, api.QueryRequest{
			Question:  c.question,
			TopK:      int(c.topK),
			Threshold: &c.threshold,
		})
		return qerr
	})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && len(apiErr.Evidence) > 0 {
			return c.renderDegraded(apiErr)
		}
		return err
	}

	return c.render(answer)
}

func (c *askCommander) render(answer *rag.Answer) error {
	if !answer.Grounded {
		fmt.Printf("\n  %s %s\n\n", cliui.DimStyle.Render("●"), answer.Text)
		return nil
	}

	fmt.Println()
	if c.plain {
		fmt.Println(answer.Text)
	} else {
		rendered, err := cliui.RenderMarkdown(answer.Text)
		if err != nil {
			fmt.Println(answer.Text)
		} else {
			fmt.Print(rendered)
		}
	}

	if len(answer.Citations) > 0 {
		fmt.Printf("  %s\n", cliui.HeaderStyle.Render("Sources"))
		for _, cit := range answer.Citations {
			preview := strings.ReplaceAll(utils.Truncate(cit.Text, 72), "\n", " ")
			fmt.Printf("  %s %s %s\n",
				labelStyle.Render(fmt.Sprintf("[%d]", cit.Label)),
				cliui.NameStyle.Render(cit.ChunkID),
				cliui.PreviewStyle.Render(preview),
			)
		}
	}

	fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render(
		fmt.Sprintf("confidence %.2f · %d passages", answer.Confidence, len(answer.Evidence)),
	))
	return nil
}

// renderDegraded prints the retrieved passages when synthesis failed, then
// reports the failure so the exit code still reflects it.
func (c *askCommander) renderDegraded(apiErr *client.APIError) error {
	fmt.Printf("\n  %s Answer synthesis is unavailable; showing the retrieved passages instead.\n\n",
		cliui.WarnStyle.Render("!"),
	)

	for _, item := range apiErr.Evidence {
		preview := strings.ReplaceAll(utils.Truncate(item.Text, 200), "\n", " ")
		fmt.Printf("  %s  %s  %s\n     %s\n",
			rankStyle.Render(fmt.Sprintf("#%d", item.Rank)),
			scoreStyle.Render(fmt.Sprintf("score: %.4f", item.Score)),
			cliui.NameStyle.Render(item.ChunkID),
			cliui.PreviewStyle.Render(preview),
		)
	}
	fmt.Println()

	return fmt.Errorf("generation unavailable: %s", apiErr.Message)
}

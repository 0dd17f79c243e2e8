// Command models lists the Bedrock foundation models visible to the caller.
//
//	models                # every provider
//	models anthropic      # provider filter, case-insensitive
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quells-bot/bedrock-cli/internal/cli"
	"github.com/quells-bot/bedrock-cli/llm"
)

func main() {
	cli.Execute(newRootCmd(os.Stdout))
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		global  cli.GlobalFlags
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List Bedrock foundation models",
		Long: "Lists Bedrock foundation models.\n\n" +
			"The optional provider filter ignores case: Amazon, amazon and AMAZON are the same.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := cli.Bootstrap(ctx, "models", global, verbose)
			if err != nil {
				return err
			}
			var provider string
			if len(args) == 1 {
				provider = args[0]
			}
			return list(ctx, out, env.ModelLister(), provider)
		},
	}
	global.Register(cmd)
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func list(ctx context.Context, out io.Writer, lister llm.ModelLister, provider string) error {
	models, err := llm.ListModels(ctx, lister, provider)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		if provider != "" {
			_, err = fmt.Fprintf(out, "no models for provider %q\n", provider)
		} else {
			_, err = fmt.Fprintln(out, "no models")
		}
		return err
	}
	renderTable(out, models)
	return nil
}

func renderTable(out io.Writer, models []llm.ModelSummary) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"id", "provider", "name", "in", "out", "streaming", "inference types"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	for _, m := range models {
		table.Append([]string{
			m.ID,
			m.Provider,
			m.Name,
			strings.Join(m.InputModalities, ","),
			strings.Join(m.OutputModalities, ","),
			strconv.FormatBool(m.Streaming),
			strings.Join(m.InferenceTypes, ","),
		})
	}
	table.Render()
}

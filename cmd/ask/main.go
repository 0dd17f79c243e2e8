// Command ask sends a single prompt to a Bedrock model through InvokeModel.
//
// Each model family has its own request body, so every supported family is
// a subcommand:
//
//	ask amzn-nova-lite "Why is the sky blue?"
//	ask anthropic-claude --system "Answer in one line" "Why is the sky blue?"
//	ask -v openai-gpt-oss "Why is the sky blue?"
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/quells-bot/bedrock-cli/internal/cli"
	"github.com/quells-bot/bedrock-cli/llm"
)

const defaultClaudeModel = "us.anthropic.claude-3-5-haiku-20241022-v1:0"

type options struct {
	global    cli.GlobalFlags
	verbose   bool
	system    string
	assistant string
}

func main() {
	cli.Execute(newRootCmd(os.Stdout))
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "ask",
		Short: "Call InvokeModel on Amazon Bedrock",
		Long: "Calls InvokeModel on Amazon Bedrock.\n\n" +
			"You must be opted into the model in your AWS account and hold bedrock:InvokeModel.\n" +
			"Each model has its own inference parameters, so each is a subcommand.",
	}
	opts.global.Register(root)
	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "dump the request and raw response")
	pf.StringVar(&opts.system, "system", "", "system prompt")
	pf.StringVar(&opts.assistant, "assistant", "", "prefilled start of the assistant response")

	root.AddCommand(
		newModelCmd(out, opts, "amzn-nova-lite", "Amazon Nova Lite", "amazon", llm.NovaLiteProfile, false),
		newModelCmd(out, opts, "anthropic-claude", "Anthropic Claude (messages API)", "anthropic", defaultClaudeModel, true),
		newModelCmd(out, opts, "openai-gpt-oss", "OpenAI gpt-oss (chat completions API)", "openai", llm.GptOss20B, true),
	)
	return root
}

func newModelCmd(out io.Writer, opts *options, use, short, provider, defaultModel string, modelFlag bool) *cobra.Command {
	model := defaultModel
	cmd := &cobra.Command{
		Use:   use + " <prompt>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := cli.Bootstrap(ctx, "ask", opts.global, opts.verbose)
			if err != nil {
				return err
			}

			clientOpts := []llm.ClientOption{
				llm.WithAdapter(llm.NewNovaAdapter()),
				llm.WithAdapter(llm.NewAnthropicAdapter()),
				llm.WithAdapter(llm.NewOpenAIAdapter()),
			}
			if opts.verbose {
				clientOpts = append(clientOpts, llm.WithTrace(cli.TracePrinter(out)))
			}
			client := env.RuntimeClient(clientOpts...)

			req := buildRequest(provider, model, args[0], opts)
			resp, err := client.Complete(ctx, req)
			if err != nil {
				return err
			}
			env.Logger.Debug("invoke done",
				zap.String("request_id", resp.RequestID),
				zap.String("stop_reason", resp.FinishReason.Raw),
				zap.Int("input_tokens", resp.Usage.InputTokens),
				zap.Int("output_tokens", resp.Usage.OutputTokens))
			return render(out, resp)
		},
	}
	if modelFlag {
		cmd.Flags().StringVar(&model, "model", defaultModel, "model or inference profile id")
	}
	return cmd
}

func buildRequest(provider, model, prompt string, opts *options) *llm.Request {
	req := &llm.Request{Provider: provider, Model: model}
	if opts.system != "" {
		req.Messages = append(req.Messages, llm.SystemMessage(opts.system))
	}
	req.Messages = append(req.Messages, llm.UserMessage(prompt))
	if opts.assistant != "" {
		req.Messages = append(req.Messages, llm.AssistantMessage(opts.assistant))
	}
	return req
}

// render prints the response text, preceded by any reasoning the model
// exposed.
func render(w io.Writer, resp *llm.Response) error {
	for _, p := range resp.Message.Content {
		if p.Kind == llm.ContentThinking && p.Thinking != nil && p.Thinking.Text != "" {
			if _, err := fmt.Fprintf(w, "<reasoning>\n%s\n</reasoning>\n\n", p.Thinking.Text); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, resp.Text())
	return err
}

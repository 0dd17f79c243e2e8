// Command converse holds a multi-turn conversation with a Bedrock model over
// the Converse API.
//
//	converse -p bedrock -m us.amazon.nova-lite-v1:0
//
// Each turn sends the whole history. Attach media to a turn with
// say -a path; images and documents must be local files, videos may also be
// s3:// locations.
package main

import (
	errors "github.com/Laisky/errors/v2"
	"github.com/spf13/cobra"

	"github.com/quells-bot/bedrock-cli/internal/cli"
	"github.com/quells-bot/bedrock-cli/internal/config"
	"github.com/quells-bot/bedrock-cli/llm"
)

type options struct {
	global  cli.GlobalFlags
	verbose bool
	model   string
	system  string

	inference inference
}

type inference struct {
	MaxTokens   *int     `validate:"omitnil,min=1"`
	Temperature *float64 `validate:"omitnil,min=0,max=1"`
	TopP        *float64 `validate:"omitnil,min=0,max=1"`
}

func main() {
	cli.Execute(newRootCmd())
}

func newRootCmd() *cobra.Command {
	o := &options{}
	var (
		maxTokens   int
		temperature float64
		topP        float64
	)

	cmd := &cobra.Command{
		Use:   "converse [flags]",
		Short: "Hold an interactive conversation with a model",
		Long: "Holds a multi-turn interactive conversation with a model through the Converse API.\n\n" +
			"Callers need bedrock:InvokeModel. Not all models support Converse, and some, such as\n" +
			"Amazon Nova, must be addressed by an inference profile id in most regions.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("max-tokens") {
				o.inference.MaxTokens = &maxTokens
			}
			if flags.Changed("temperature") {
				o.inference.Temperature = &temperature
			}
			if flags.Changed("top-p") {
				o.inference.TopP = &topP
			}
			if err := config.Validate.Struct(o.inference); err != nil {
				return errors.Wrap(err, "invalid inference parameters")
			}

			ctx := cmd.Context()
			env, err := cli.Bootstrap(ctx, "converse", o.global, o.verbose)
			if err != nil {
				return err
			}
			if !flags.Changed("model") {
				o.model = env.Config.ConverseModel
			}

			client := env.RuntimeClient(llm.WithMiddleware(cli.LoggingMiddleware(env.Logger)))
			s := newSession(client, newConversation(o), cmd.OutOrStdout())
			return s.run(ctx, cmd.InOrStdin())
		},
	}

	o.global.Register(cmd)
	f := cmd.Flags()
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log each request and response")
	f.StringVarP(&o.model, "model", "m", config.DefaultConverseModel, "model or inference profile id")
	f.StringVarP(&o.system, "system", "s", "", "system prompt for the entire conversation")
	f.IntVar(&maxTokens, "max-tokens", 0, "maximum tokens per reply")
	f.Float64Var(&temperature, "temperature", 0, "sampling temperature (0-1)")
	f.Float64Var(&topP, "top-p", 0, "nucleus sampling probability (0-1)")
	return cmd
}

func newConversation(o *options) llm.Conversation {
	opts := []llm.ConversationOption{llm.WithSystem(o.system)}
	if o.inference.MaxTokens != nil {
		opts = append(opts, llm.WithMaxTokens(*o.inference.MaxTokens))
	}
	if o.inference.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*o.inference.Temperature))
	}
	if o.inference.TopP != nil {
		opts = append(opts, llm.WithTopP(*o.inference.TopP))
	}
	return llm.NewConversation(o.model, opts...)
}

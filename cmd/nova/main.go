// Command nova invokes the Amazon Nova text models on Bedrock, optionally
// with image, video and document attachments.
//
//	nova --image ~/black_dog.jpeg --image ~/white_dog.jpeg "What is the difference between these dogs?"
//
// Nova models must be called through an inference profile (us.amazon.nova-lite-v1:0)
// rather than the bare model id. Creative models (Canvas, Reel) are not
// supported here; see the canvas command.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/quells-bot/bedrock-cli/internal/attach"
	"github.com/quells-bot/bedrock-cli/internal/cli"
	"github.com/quells-bot/bedrock-cli/internal/config"
	"github.com/quells-bot/bedrock-cli/llm"
)

type options struct {
	global    cli.GlobalFlags
	debug     bool
	system    string
	assistant string
	model     string
	images    []string
	videos    []string
	s3Videos  []string
	documents []string
	stop      []string

	inference inference
}

// inference holds the optional generation settings; nil means unset.
type inference struct {
	MaxTokens   *int     `validate:"omitnil,min=1,max=5000"`
	Temperature *float64 `validate:"omitnil,min=0,max=1"`
	TopP        *float64 `validate:"omitnil,min=0,max=1"`
	TopK        *int     `validate:"omitnil,min=0"`
}

func main() {
	cli.Execute(newRootCmd(os.Stdout))
}

func newRootCmd(out io.Writer) *cobra.Command {
	o := &options{}
	var (
		maxTokens   int
		temperature float64
		topP        float64
		topK        int
	)

	cmd := &cobra.Command{
		Use:   "nova [flags] <prompt>",
		Short: "Invoke an Amazon Nova text model",
		Long: "Invokes Amazon's Nova family of text models on Bedrock.\n\n" +
			"You must be opted into the model in your AWS account and hold bedrock:InvokeModel.\n" +
			"Not all models support all modalities; micro does not accept images or video.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if flags.Changed("top-k") {
				o.inference.TopK = &topK
			}

			ctx := cmd.Context()
			env, err := cli.Bootstrap(ctx, "nova", o.global, o.debug)
			if err != nil {
				return err
			}
			if !flags.Changed("model") {
				o.model = env.Config.NovaModel
			}

			req, err := buildRequest(ctx, o, args[0])
			if err != nil {
				return err
			}

			clientOpts := []llm.ClientOption{
				llm.WithAdapter(llm.NewNovaAdapter()),
				llm.WithDefaultProvider("amazon"),
			}
			if o.debug {
				clientOpts = append(clientOpts, llm.WithTrace(cli.TracePrinter(out)))
			}
			resp, err := env.RuntimeClient(clientOpts...).Complete(ctx, req)
			if err != nil {
				return err
			}
			env.Logger.Debug("invoke done",
				zap.String("model", o.model),
				zap.String("request_id", resp.RequestID),
				zap.String("stop_reason", resp.FinishReason.Raw),
				zap.Int("input_tokens", resp.Usage.InputTokens),
				zap.Int("output_tokens", resp.Usage.OutputTokens))

			_, err = fmt.Fprintln(out, resp.Text())
			return err
		},
	}

	o.global.Register(cmd)
	f := cmd.Flags()
	f.BoolVarP(&o.debug, "debug", "d", false, "dump raw input and output")
	f.StringVarP(&o.system, "system", "s", "", "system prompt")
	f.StringVarP(&o.assistant, "assistant", "a", "", "prefilled start of the assistant response")
	f.StringVarP(&o.model, "model", "m", config.DefaultNovaModel, "model or inference profile id")
	f.StringArrayVarP(&o.images, "image", "i", nil, "image file to attach; repeatable")
	f.StringArrayVarP(&o.videos, "video", "v", nil, "local video file to attach; repeatable")
	f.StringArrayVarP(&o.s3Videos, "uri-video", "u", nil, "s3:// video location to attach; repeatable")
	f.StringArrayVar(&o.documents, "document", nil, "document file to attach; repeatable")
	f.IntVar(&maxTokens, "max-tokens", 0, "maximum tokens to generate (1-5000)")
	f.Float64Var(&temperature, "temperature", 0, "sampling temperature (0-1)")
	f.Float64Var(&topP, "top-p", 0, "nucleus sampling probability (0-1)")
	f.IntVar(&topK, "top-k", 0, "sample from the k most likely tokens")
	f.StringArrayVar(&o.stop, "stop", nil, "stop sequence; repeatable")
	return cmd
}

// buildRequest validates the options and assembles the Nova request: the
// user turn holds the prompt followed by images, videos, s3 videos and
// documents, and an assistant prefill comes last.
func buildRequest(ctx context.Context, o *options, prompt string) (*llm.Request, error) {
	if err := config.Validate.Struct(o.inference); err != nil {
		return nil, errors.Wrap(err, "invalid inference parameters")
	}
	for _, uri := range o.s3Videos {
		if !strings.HasPrefix(strings.ToLower(uri), "s3://") {
			return nil, errors.Errorf("--uri-video %q is not an s3:// location", uri)
		}
	}
	for _, p := range o.videos {
		if strings.HasPrefix(strings.ToLower(p), "s3://") {
			return nil, errors.Errorf("--video %q is an s3 location; use --uri-video", p)
		}
	}

	groups := []struct {
		flag  string
		paths []string
		kind  attach.Kind
	}{
		{"image", o.images, attach.KindImage},
		{"video", o.videos, attach.KindVideo},
		{"uri-video", o.s3Videos, attach.KindVideo},
		{"document", o.documents, attach.KindDocument},
	}

	var paths []string
	for _, g := range groups {
		paths = append(paths, g.paths...)
	}
	atts, err := attach.Load(ctx, paths)
	if err != nil {
		return nil, err
	}

	var parts []llm.ContentPart
	i := 0
	for _, g := range groups {
		for range g.paths {
			a := atts[i]
			i++
			if a.Kind != g.kind {
				return nil, errors.Errorf("--%s %q is a %s, not a %s", g.flag, a.Path, a.Kind, g.kind)
			}
			parts = append(parts, a.Part())
		}
	}

	req := &llm.Request{
		Provider:      "amazon",
		Model:         o.model,
		MaxTokens:     o.inference.MaxTokens,
		Temperature:   o.inference.Temperature,
		TopP:          o.inference.TopP,
		TopK:          o.inference.TopK,
		StopSequences: o.stop,
	}
	if o.system != "" {
		req.Messages = append(req.Messages, llm.SystemMessage(o.system))
	}
	req.Messages = append(req.Messages, llm.UserMessage(prompt, parts...))
	if o.assistant != "" {
		req.Messages = append(req.Messages, llm.AssistantMessage(o.assistant))
	}
	return req, nil
}

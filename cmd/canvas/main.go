// Command canvas generates images from a text prompt with Amazon Nova Canvas.
//
//	canvas --negative "birds, ducks" "Picture of a lake with wildlife, photorealistic"
//
// Images are written as <output>/<request-id>-<n>.png.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quells-bot/bedrock-cli/internal/attach"
	"github.com/quells-bot/bedrock-cli/internal/cli"
	"github.com/quells-bot/bedrock-cli/internal/config"
	"github.com/quells-bot/bedrock-cli/llm"
)

// bodyPreview is how much of each end of the response body -v shows.
const bodyPreview = 50

type options struct {
	global   cli.GlobalFlags
	debug    bool
	verbose  bool
	model    string
	output   string
	negative string

	gen  llm.ImageGenerationConfig
	seed int
}

func main() {
	cli.Execute(newRootCmd(os.Stdout))
}

func newRootCmd(out io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "canvas [flags] <prompt>",
		Short: "Generate images with Amazon Nova Canvas",
		Long: "Invokes Amazon Nova Canvas on Bedrock.\n\n" +
			"Canvas is not conversational: write the prompt like an image caption and avoid\n" +
			"negation words such as \"no\" or \"without\". Put exclusions in --negative instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			ctx := cmd.Context()
			env, err := cli.Bootstrap(ctx, "canvas", o.global, o.debug || o.verbose)
			if err != nil {
				return err
			}
			if !flags.Changed("model") {
				o.model = env.Config.CanvasModel
			}
			if !flags.Changed("output") {
				o.output = env.Config.OutputDir
			}

			req, err := buildRequest(o, args[0], flags.Changed("seed"))
			if err != nil {
				return err
			}

			var clientOpts []llm.ClientOption
			switch {
			case o.verbose:
				clientOpts = append(clientOpts, llm.WithTrace(cli.SummaryTracePrinter(out, bodyPreview)))
			case o.debug:
				clientOpts = append(clientOpts, llm.WithTrace(cli.TracePrinter(out)))
			}

			resp, err := env.RuntimeClient(clientOpts...).GenerateImages(ctx, o.model, req)
			if err != nil {
				return err
			}
			env.Logger.Debug("canvas done",
				zap.String("model", o.model),
				zap.String("request_id", resp.RequestID),
				zap.Int("images", len(resp.Images)))

			_, err = writeImages(out, o.output, resp)
			return err
		},
	}

	o.global.Register(cmd)
	f := cmd.Flags()
	f.BoolVarP(&o.debug, "debug", "d", false, "dump raw input and output")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "dump input and output with the body shortened")
	f.StringVarP(&o.model, "model", "m", config.DefaultCanvasModel, "canvas model id")
	f.StringVarP(&o.output, "output", "o", config.DefaultOutputDir, "output directory")
	f.StringVarP(&o.negative, "negative", "n", "", "what the image should not contain")
	f.IntVar(&o.gen.NumberOfImages, "count", 0, "number of images to generate (1-5)")
	f.IntVar(&o.gen.Width, "width", 0, "image width in pixels (320-4096)")
	f.IntVar(&o.gen.Height, "height", 0, "image height in pixels (320-4096)")
	f.Float64Var(&o.gen.CfgScale, "cfg-scale", 0, "how strictly to follow the prompt (1.1-10)")
	f.IntVar(&o.seed, "seed", 0, "generation seed (0-858993459)")
	f.StringVar(&o.gen.Quality, "quality", "", "standard or premium")
	return cmd
}

func buildRequest(o *options, prompt string, seedSet bool) (*llm.ImageRequest, error) {
	gen := o.gen
	if seedSet {
		seed := o.seed
		gen.Seed = &seed
	}
	if err := config.Validate.Struct(gen); err != nil {
		return nil, errors.Wrap(err, "invalid image generation settings")
	}
	return &llm.ImageRequest{
		Prompt:         prompt,
		NegativePrompt: o.negative,
		Config:         &gen,
	}, nil
}

// writeImages saves every returned image and lists the paths on w. A
// model-reported error is printed but does not stop the images that did come
// back from being written.
func writeImages(w io.Writer, dir string, resp *llm.ImageResponse) ([]string, error) {
	if resp.Error != "" {
		fmt.Fprintf(w, "response.error: %s\n", resp.Error)
	}

	prefix := resp.RequestID
	if prefix == "" {
		prefix = uuid.NewString()
	}

	var paths []string
	for i, img := range resp.Images {
		path, err := attach.WriteFile(filepath.Join(dir, fmt.Sprintf("%s-%d.png", prefix, i)), img)
		if err != nil {
			return paths, err
		}
		if len(paths) == 0 {
			fmt.Fprintln(w, "Writing:")
		}
		fmt.Fprintln(w, path)
		paths = append(paths, path)
	}
	return paths, nil
}

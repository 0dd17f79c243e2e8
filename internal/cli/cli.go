// Package cli holds the wiring shared by every binary under cmd/: global
// flags, configuration bootstrap, verbose tracing and process exit handling.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	errors "github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/quells-bot/bedrock-cli/internal/awsconf"
	"github.com/quells-bot/bedrock-cli/internal/config"
	"github.com/quells-bot/bedrock-cli/internal/logger"
	"github.com/quells-bot/bedrock-cli/llm"
)

// GlobalFlags are accepted by every binary.
type GlobalFlags struct {
	Profile string
	Region  string
}

// Register adds the flags to cmd as persistent flags.
func (f *GlobalFlags) Register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.Profile, "aws-profile", "p", "",
		"AWS profile for credentials and region. Without it, AWS_* environment variables and then the default profile are used")
	pf.StringVar(&f.Region, "region", "", "AWS region override")
}

// Env is everything a command needs once flags are parsed.
type Env struct {
	Config *config.Config
	AWS    aws.Config
	Logger glog.Logger
}

// Bootstrap loads configuration, applies flag overrides, sets the log level
// and resolves AWS settings. debug raises the log level on top of DEBUG.
func Bootstrap(ctx context.Context, name string, flags GlobalFlags, debug bool) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.Profile != "" {
		cfg.AWSProfile = flags.Profile
	}
	if flags.Region != "" {
		cfg.Region = flags.Region
	}

	logger.SetDebug(debug || cfg.Debug)
	log := logger.Named(name)

	awsCfg, err := awsconf.Load(ctx, awsconf.Options{Profile: cfg.AWSProfile, Region: cfg.Region})
	if err != nil {
		return nil, err
	}
	log.Debug("bootstrapped",
		zap.String("profile", cfg.AWSProfile),
		zap.String("region", awsCfg.Region))

	return &Env{Config: cfg, AWS: awsCfg, Logger: log}, nil
}

// RuntimeClient returns an llm.Client backed by the Bedrock runtime API.
func (e *Env) RuntimeClient(opts ...llm.ClientOption) *llm.Client {
	return llm.NewClient(awsconf.NewRuntimeClient(e.AWS), opts...)
}

// ModelLister returns the control-plane client used by ListModels.
func (e *Env) ModelLister() llm.ModelLister {
	return awsconf.NewControlPlaneClient(e.AWS)
}

// LoggingMiddleware logs every Converse turn at debug level.
func LoggingMiddleware(log glog.Logger) llm.Middleware {
	return func(ctx context.Context, conv *llm.Conversation, next llm.SendFunc) (*llm.Response, error) {
		start := time.Now()
		log.Debug("converse request",
			zap.String("model", conv.Model),
			zap.Int("messages", len(conv.Messages)))

		resp, err := next(ctx, conv)
		if err != nil {
			log.Debug("converse failed",
				zap.String("model", conv.Model),
				zap.Duration("cost", time.Since(start)),
				zap.Error(err))
			return nil, err
		}

		log.Debug("converse response",
			zap.String("model", conv.Model),
			zap.String("request_id", resp.RequestID),
			zap.String("finish_reason", resp.FinishReason.Raw),
			zap.Int("input_tokens", resp.Usage.InputTokens),
			zap.Int("output_tokens", resp.Usage.OutputTokens),
			zap.Duration("cost", time.Since(start)))
		return resp, nil
	}
}

// TracePrinter dumps InvokeModel request and response bodies to w.
func TracePrinter(w io.Writer) llm.TraceFunc {
	return func(dir llm.TraceDirection, modelID string, body []byte) {
		switch dir {
		case llm.TraceRequest:
			fmt.Fprintf(w, ">>> request\nid: %s\n%s\n", modelID, body)
		case llm.TraceResponse:
			fmt.Fprintf(w, "\n<<< response\n%s\n\n", body)
		}
	}
}

// SummaryTracePrinter is TracePrinter with response bodies cut down to their
// length plus the first and last n bytes. Used where bodies carry base64
// images.
func SummaryTracePrinter(w io.Writer, n int) llm.TraceFunc {
	full := TracePrinter(w)
	return func(dir llm.TraceDirection, modelID string, body []byte) {
		if dir != llm.TraceResponse {
			full(dir, modelID, body)
			return
		}
		fmt.Fprintf(w, "\n<<< response\n%s\n", Summarize(body, n))
		fmt.Fprintln(w, "run with --debug for more")
	}
}

// Summarize renders body as its length followed by its head and tail.
func Summarize(body []byte, n int) string {
	if len(body) <= 2*n {
		return fmt.Sprintf("len: %d\n%s\n", len(body), body)
	}
	return fmt.Sprintf("len: %d\n%s ... %s\n", len(body), body[:n], body[len(body)-n:])
}

// Execute runs cmd with a context cancelled on SIGINT/SIGTERM. Errors are
// printed to stderr and the process exits with status 1.
func Execute(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cmd)
	stop()
	if err != nil {
		Report(os.Stderr, err)
		os.Exit(1)
	}
}

// Report prints err and, for Bedrock failures, a hint at the likely fix.
func Report(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		if hint := llmErr.Hint(); hint != "" {
			fmt.Fprintf(w, "hint: %s\n", hint)
		}
	}
}

func run(ctx context.Context, cmd *cobra.Command) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if err := cmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(err, "interrupted")
		}
		return err
	}
	return nil
}

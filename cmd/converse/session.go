package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/quells-bot/bedrock-cli/internal/attach"
	"github.com/quells-bot/bedrock-cli/internal/cli"
	"github.com/quells-bot/bedrock-cli/llm"
)

// maxLineBytes bounds a single REPL input line.
const maxLineBytes = 1 << 20

const helpText = `Commands:
  say [-a path]... <prompt>  send the next turn, optionally with attachments
  history                    print the conversation so far
  usage                      print accumulated token usage
  reset                      forget the history, keeping model and system prompt
  help                       show this message
  exit, quit                 leave
`

// session is the REPL state: one conversation and the client that extends it.
type session struct {
	client  *llm.Client
	initial llm.Conversation
	conv    llm.Conversation
	out     io.Writer
}

func newSession(client *llm.Client, conv llm.Conversation, out io.Writer) *session {
	return &session{client: client, initial: conv, conv: conv, out: out}
}

func (s *session) prompt() string {
	return fmt.Sprintf("[%s]\n> ", s.conv.Model)
}

// run reads commands from in until exit, end of input or ctx is done. A
// cancelled ctx ends the session even while waiting for input.
func (s *session) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)

	fmt.Fprintln(s.out)
	for {
		fmt.Fprint(s.out, s.prompt())
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				return nil
			}
			if l.err != nil {
				fmt.Fprintln(s.out)
				return errors.Wrap(l.err, "read input")
			}
			// skip a line that raced with cancellation
			if ctx.Err() != nil {
				return nil
			}
			if quit := s.exec(ctx, l.text); quit || ctx.Err() != nil {
				return nil
			}
		}
	}
}

type inputLine struct {
	text string
	err  error
}

// readLines scans in on its own goroutine so the caller can stop waiting
// when ctx is done. The channel is closed at end of input.
func readLines(ctx context.Context, in io.Reader) <-chan inputLine {
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		send := func(l inputLine) bool {
			select {
			case lines <- l:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for scanner.Scan() {
			if !send(inputLine{text: scanner.Text()}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(inputLine{err: err})
		}
	}()
	return lines
}

// exec runs one input line. Failures are reported on the output and never
// end the session.
func (s *session) exec(ctx context.Context, line string) (quit bool) {
	args, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(s.out, "could not parse input: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "exit", "quit":
		return true
	case "help", "?":
		fmt.Fprint(s.out, helpText)
	case "history":
		s.printHistory()
	case "usage":
		s.printUsage()
	case "reset":
		s.conv = s.initial
		fmt.Fprintln(s.out, "conversation reset")
	case "say":
		cmd := s.sayCmd()
		cmd.SetArgs(args[1:])
		if err := cmd.ExecuteContext(ctx); err != nil {
			cli.Report(s.out, err)
		}
	default:
		fmt.Fprintf(s.out, "unknown command %q; try help\n", args[0])
	}
	return false
}

// sayCmd is rebuilt per line so flag values never leak between turns.
func (s *session) sayCmd() *cobra.Command {
	var paths []string
	cmd := &cobra.Command{
		Use:   "say [-a path]... <prompt>",
		Short: "Send a message to the model",
		Long: "Send a message to the model.\n\n" +
			"Media type comes from the file extension:\n" +
			"  images: png, jpg, jpeg, gif, webp (local only)\n" +
			"  videos: mp4, mov, mkv, webm, flv, mpeg, mpg, wmv, 3gp (local or s3://)\n" +
			"  documents: csv, doc, docx, html, md, pdf, txt, xls, xlsx (local only)\n" +
			"Not all models support all modalities.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.say(cmd.Context(), strings.Join(args, " "), paths)
		},
	}
	cmd.SetOut(s.out)
	cmd.SetErr(s.out)
	cmd.Flags().StringArrayVarP(&paths, "attach", "a", nil, "file or s3:// video to attach; repeatable")
	return cmd
}

// say sends one user turn. An attachment that cannot be loaded aborts the
// turn before anything is sent; a failed call leaves the history unchanged.
func (s *session) say(ctx context.Context, prompt string, paths []string) error {
	parts, err := attach.Parts(ctx, paths)
	if err != nil {
		var invalid *attach.InvalidPathError
		if errors.As(err, &invalid) {
			fmt.Fprintf(s.out, "Invalid attachment path, aborting turn. path: %s\n", invalid.Path)
			return nil
		}
		return err
	}

	conv, resp, err := s.client.Send(ctx, s.conv, llm.UserMessage(prompt, parts...))
	if err != nil {
		return err
	}
	s.conv = conv
	printContent(s.out, resp.Message)
	return nil
}

func (s *session) printHistory() {
	if len(s.conv.Messages) == 0 {
		fmt.Fprintln(s.out, "(empty)")
		return
	}
	for _, sys := range s.conv.System {
		fmt.Fprintf(s.out, "system: %s\n", sys)
	}
	for _, m := range s.conv.Messages {
		fmt.Fprintf(s.out, "%s:\n", m.Role)
		printContent(s.out, m)
	}
}

func (s *session) printUsage() {
	u := s.conv.Usage
	fmt.Fprintf(s.out, "turns: %d\ninput tokens: %d\noutput tokens: %d\ncache read tokens: %d\ncache write tokens: %d\n",
		s.conv.Turns(), u.InputTokens, u.OutputTokens, u.CacheReadTokens, u.CacheWriteTokens)
}

// printContent writes text blocks verbatim and a placeholder for anything
// else.
func printContent(w io.Writer, m llm.Message) {
	for _, p := range m.Content {
		if p.Kind == llm.ContentText {
			fmt.Fprintln(w, p.Text)
			continue
		}
		fmt.Fprintln(w, placeholder(p.Kind))
	}
}

func placeholder(k llm.ContentKind) string {
	switch k {
	case llm.ContentImage:
		return "-- image --"
	case llm.ContentVideo:
		return "-- video --"
	case llm.ContentDocument:
		return "-- document --"
	case llm.ContentToolCall:
		return "-- tool use --"
	case llm.ContentToolResult:
		return "-- tool result --"
	case llm.ContentThinking:
		return "-- reasoning --"
	default:
		return fmt.Sprintf("-- %s --", k)
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/agentgraph/internal/cli"
	"github.com/aretw0/agentgraph/internal/presentation/tui"
	"github.com/aretw0/agentgraph/internal/sanitize"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run [message]",
	Short: "Chat with the agent on a thread",
	Long: `Sends a message to a thread and prints what the agent did.

With a message argument (or piped stdin) the command runs once and exits.
Without one, on a terminal, it starts an interactive chat; type /exit to leave.
A new thread id is generated unless --thread is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		resume, _ := cmd.Flags().GetBool("resume")
		noColor, _ := cmd.Flags().GetBool("no-color")

		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.Close()

		if threadID == "" {
			threadID = uuid.NewString()
		}

		profile := termenv.Ascii
		if !noColor && term.IsTerminal(int(os.Stdout.Fd())) {
			profile = termenv.EnvColorProfile()
		}
		var render func(string) (string, error)
		if profile != termenv.Ascii {
			if render, err = tui.NewRenderer(); err != nil {
				rt.Logger.Warn("markdown rendering disabled", "err", err)
				render = nil
			}
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		chat := cli.NewChat(rt.Engine, threadID, tui.NewTranscript(os.Stdout, profile, render), os.Stdout)

		switch {
		case resume:
			err = chat.Resume(ctx)
		case len(args) > 0:
			err = chat.Send(ctx, strings.Join(args, " "))
		case term.IsTerminal(int(os.Stdin.Fd())):
			tui.PrintBanner(os.Stdout, profile)
			if err := chat.History(ctx); err != nil {
				return err
			}
			fmt.Println(">>> Type /exit to leave.")
			err = chat.Loop(ctx, os.Stdin)
		default:
			data, readErr := io.ReadAll(io.LimitReader(os.Stdin, int64(sanitize.MaxInputSize())+1))
			if readErr != nil {
				return fmt.Errorf("failed to read stdin: %w", readErr)
			}
			err = chat.Send(ctx, string(data))
		}

		fmt.Fprintf(os.Stderr, "thread: %s\n", threadID)
		if ctx.Signal() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("thread", "t", "", "Thread id to continue (default: a new uuid)")
	runCmd.Flags().Bool("resume", false, "Continue the thread without new input (after a crash or abort)")
	runCmd.Flags().Bool("no-color", false, "Disable colors and markdown rendering")
}

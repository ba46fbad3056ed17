/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/docchat-be/service"
	"github.com/tieubaoca/docchat-be/types"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question about the document from the terminal",
	Long: `Loads the PDF, sends the question to the configured provider and prints
the answer as it streams in. Use --no-stream to print it only once complete.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		document, err := a.store.Text()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		provider, err := a.newProvider(ctx)
		if err != nil {
			return err
		}
		if closer, ok := provider.(io.Closer); ok {
			defer closer.Close()
		}
		relay := a.newRelay(provider)

		question := strings.Join(args, " ")
		out := cmd.OutOrStdout()
		if noStream, _ := cmd.Flags().GetBool("no-stream"); noStream {
			answer, err := relay.Collect(ctx, question, document)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, answer)
			return nil
		}
		return printStream(ctx, out, relay, question, document)
	},
}

func printStream(ctx context.Context, out io.Writer, relay *service.CompletionRelay, question, document string) error {
	for event := range relay.Stream(ctx, question, document) {
		switch event.Type {
		case types.EventContent:
			fmt.Fprint(out, event.Content)
		case types.EventDone:
			fmt.Fprintln(out)
			return nil
		case types.EventError:
			fmt.Fprintln(out)
			return errors.New(event.Content)
		}
	}
	return ctx.Err()
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Bool("no-stream", false, "wait for the full answer before printing")
}

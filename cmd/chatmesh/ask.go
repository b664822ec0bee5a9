package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/chatmesh"
	"github.com/hupe1980/chatmesh/core"
)

var (
	askThreadID string
	askProvider string
	askModel    string
	askDBID     string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Run a single turn and print the answer",
	Long: `Runs one conversational turn against the configured model and session
store. Pass --thread to continue a conversation and --json to print every
stream event as it is emitted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askThreadID, "thread", "", "continue the given thread id")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "model provider")
	askCmd.Flags().StringVar(&askModel, "model", "", "model name")
	askCmd.Flags().StringVar(&askDBID, "db", "", "knowledge base id")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print raw events")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	mesh, closer, err := buildMesh(ctx)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	meta := core.Metadata{}
	if askProvider != "" {
		meta[core.MetaModelProvider] = askProvider
		meta[core.MetaModelName] = askModel
	}
	if askDBID != "" {
		meta[core.MetaDBID] = askDBID
	}

	_, events, err := mesh.Chat(ctx, chatmesh.Request{
		Query:    strings.Join(args, " "),
		Meta:     meta,
		ThreadID: askThreadID,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failure error
	for ev := range events {
		if askJSON {
			raw, err := ev.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(raw))
			continue
		}
		switch ev.Status {
		case core.StatusLoading:
			fmt.Fprint(out, ev.Text())
		case core.StatusFinished:
			failure = nil
			fmt.Fprintln(out)
		case core.StatusTitleGenerated:
			fmt.Fprintf(cmd.ErrOrStderr(), "thread %s: %s\n", ev.ThreadID, ev.Title)
		case core.StatusError:
			// retrieval errors are followed by an answer; model errors end the stream
			fmt.Fprintln(cmd.ErrOrStderr(), ev.Message)
			failure = fmt.Errorf("turn failed: %s", ev.Message)
		}
	}
	return failure
}

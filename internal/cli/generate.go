package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a mind map for a prompt",
		Args:  cobra.MinimumNArgs(1),
		Run:   runGenerate,
	}

	cmd.Flags().Bool("stream", false, "Stream the map as it is written")
	cmd.Flags().Bool("raw", false, "Print markdown instead of the outline tree")
	cmd.Flags().StringP("out", "o", "", "Also write the markdown to a file")
	addOptionFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) {
	stream, _ := cmd.Flags().GetBool("stream")
	raw, _ := cmd.Flags().GetBool("raw")
	outPath, _ := cmd.Flags().GetString("out")

	opts, err := readOptions(cmd)
	if err != nil {
		exitErr("options", err)
	}

	printer := &streamPrinter{w: os.Stdout}
	orch, err := newOrchestrator(sessionConfig{
		client:   newClient(),
		notices:  os.Stderr,
		onStream: printer.update,
	})
	if err != nil {
		exitErr("token", err)
	}
	orch.SetOptions(opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := strings.Join(args, " ")
	var result *mindmap.GenerateResult
	if stream {
		h, _, err := orch.SubmitStreaming(ctx, prompt)
		if err != nil {
			exitErr("generate", err)
		}
		if h != nil {
			if err := h.Wait(ctx); err != nil {
				// Ctrl-C keeps whatever arrived so far
				orch.StopStream()
			}
			<-h.Done()
		}
	} else {
		out, err := orch.Submit(ctx, prompt)
		if err != nil {
			exitErr("generate", err)
		}
		result = out.Result
	}
	orch.WaitSideEffects()

	snap := orch.State().Snapshot()
	if snap.Error != "" {
		exitErr("generate", errors.New(snap.Error))
	}

	switch {
	case raw && !stream:
		fmt.Println(snap.MindmapData)
	case !raw:
		if stream {
			fmt.Println()
		}
		renderOutline(os.Stdout, snap.MindmapData)
	}
	if result != nil {
		renderMetadata(os.Stderr, result.Metadata)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(snap.MindmapData+"\n"), 0o644); err != nil {
			exitErr("write", err)
		}
		dimColor.Fprintf(os.Stderr, "saved to %s\n", outPath)
	}
}

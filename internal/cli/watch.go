package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/Kripu77/prompt-map-sub001/pkg/events"
	pktNats "github.com/Kripu77/prompt-map-sub001/pkg/nats"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow thread events from the NATS bus",
		Run:   runWatch,
	}

	cmd.Flags().String("nats", "", "NATS URL (default: $NATS_URL or "+nats.DefaultURL+")")
	cmd.Flags().String("type", "", "Only this event type, e.g. "+events.ThreadCreated)
	cmd.Flags().String("durable", "", "Durable consumer name; empty follows new events only")

	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	url, _ := cmd.Flags().GetString("nats")
	eventType, _ := cmd.Flags().GetString("type")
	durable, _ := cmd.Flags().GetString("durable")
	if url == "" {
		url = os.Getenv("NATS_URL")
	}
	if url == "" {
		url = nats.DefaultURL
	}

	sub, err := pktNats.NewSubscriber(url)
	if err != nil {
		exitErr("connect", err)
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := sub.Subscribe(ctx, eventType, durable, printEvent); err != nil {
		exitErr("subscribe", err)
	}
	dimColor.Fprintf(os.Stderr, "watching %s (Ctrl-C to stop)\n", url)
	<-ctx.Done()
}

func printEvent(_ context.Context, e events.Event) error {
	p := e.Payload()
	label := noticeColor.Sprint(e.EventType())
	if e.EventType() == events.ThreadDeleted {
		label = errorColor.Sprint(e.EventType())
	}
	fmt.Printf("%s  %s  %v  %v\n", e.Timestamp().Local().Format("15:04:05"), label, p["thread_id"], p["title"])
	return nil
}

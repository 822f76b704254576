package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	threads := &cobra.Command{
		Use:   "threads",
		Short: "Manage saved mind maps (requires a token)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved mind maps, newest first",
		Run:   runThreadsList,
	}
	list.Flags().IntP("limit", "l", 20, "Max results")
	list.Flags().Int("offset", 0, "Skip this many results")
	list.Flags().Bool("json", false, "Output JSON")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved mind map",
		Args:  cobra.ExactArgs(1),
		Run:   runThreadsShow,
	}
	show.Flags().Bool("raw", false, "Print markdown instead of the outline tree")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved mind map",
		Args:  cobra.ExactArgs(1),
		Run:   runThreadsDelete,
	}

	threads.AddCommand(list, show, del)
	RootCmd.AddCommand(threads)
}

func runThreadsList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	asJSON, _ := cmd.Flags().GetBool("json")

	res, err := newClient().ListThreads(cmd.Context(), limit, offset)
	if err != nil {
		exitErr("list threads", err)
	}

	if asJSON {
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(b))
		return
	}
	for _, t := range res.Items {
		fmt.Printf("%s  %s  ", t.ID, t.CreatedAt.Local().Format("2006-01-02 15:04"))
		titleColor.Println(t.Title)
	}
	dimColor.Fprintf(os.Stderr, "%d of %d\n", len(res.Items), res.Total)
}

func runThreadsShow(cmd *cobra.Command, args []string) {
	raw, _ := cmd.Flags().GetBool("raw")
	id, err := uuid.Parse(args[0])
	if err != nil {
		exitErr("thread id", err)
	}

	t, err := newClient().GetThread(cmd.Context(), id)
	if err != nil {
		exitErr("show thread", err)
	}
	if raw {
		fmt.Println(t.Content)
		return
	}
	renderOutline(os.Stdout, t.Content)
	if t.Reasoning != nil && *t.Reasoning != "" {
		dimColor.Printf("\nreasoning: %s\n", *t.Reasoning)
	}
}

func runThreadsDelete(cmd *cobra.Command, args []string) {
	id, err := uuid.Parse(args[0])
	if err != nil {
		exitErr("thread id", err)
	}
	if err := newClient().DeleteThread(cmd.Context(), id); err != nil {
		exitErr("delete thread", err)
	}
	dimColor.Println("deleted")
}

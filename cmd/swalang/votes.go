package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fruitsalade/swalang/internal/models"
	"github.com/fruitsalade/swalang/internal/workspace"
)

func voteMark(v models.Vote) string {
	switch v {
	case models.VoteUp:
		return "▲"
	case models.VoteDown:
		return "▼"
	default:
		return " "
	}
}

func cmdSuggestions(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("suggestions", flag.ExitOnError)
	fs.Parse(args)

	if err := w.Votes.Load(ctx); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORD\tSCORE\tYOU\tBY")
	for _, s := range w.Votes.State().List() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Word, s.Score, voteMark(s.UserVote), s.SubmittedBy)
	}
	return tw.Flush()
}

func cmdVote(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("vote", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return errors.New("usage: vote ID up|down")
	}
	v, err := models.ParseVote(fs.Arg(1))
	if err != nil {
		return err
	}

	if err := w.Votes.Load(ctx); err != nil {
		return err
	}
	s, err := w.Votes.CastVote(ctx, fs.Arg(0), v)
	if err != nil {
		return err
	}
	fmt.Printf("%s: score %d, your vote %s\n", s.Word, s.Score, s.UserVote)

	w.Votes.Flush()
	if err := w.Votes.State().Errors[s.ID]; err != nil {
		return fmt.Errorf("vote applied locally but not recorded remotely: %w", err)
	}
	return nil
}

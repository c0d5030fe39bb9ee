package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fruitsalade/swalang/internal/models"
	"github.com/fruitsalade/swalang/internal/workspace"
)

// parentFlag registers -parent; empty means the root.
func parentFlag(fs *flag.FlagSet) *string {
	return fs.String("parent", "", "Parent folder ID (default: root)")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func printNodes(nodes []models.Node, indent string) {
	for _, n := range nodes {
		if n.IsFolder {
			fmt.Printf("%s%s/\t%s\n", indent, n.Name, n.ID)
		} else {
			fmt.Printf("%s%s\t%s\n", indent, n.Name, n.ID)
		}
	}
}

func cmdLs(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	parent := parentFlag(fs)
	force := fs.Bool("force", false, "Reload even if cached")
	fs.Parse(args)

	pid := optional(*parent)
	if err := w.Files.Load(ctx, pid, *force); err != nil {
		return err
	}
	nodes, _ := w.Files.Children(pid)
	if len(nodes) == 0 {
		fmt.Println("(empty)")
		return nil
	}
	printNodes(nodes, "")
	return nil
}

func cmdTree(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	depth := fs.Int("depth", 3, "Maximum depth to load")
	fs.Parse(args)

	if err := loadTree(ctx, w, *depth); err != nil {
		return err
	}
	printTree(w, nil, "", *depth)
	return nil
}

// loadTree loads folders level by level, each level in parallel.
func loadTree(ctx context.Context, w *workspace.Workspace, depth int) error {
	level := []*string{nil}
	for d := 0; d < depth && len(level) > 0; d++ {
		var (
			mu   sync.Mutex
			next []*string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(8)
		for _, pid := range level {
			g.Go(func() error {
				if err := w.Files.Load(gctx, pid, false); err != nil {
					return err
				}
				nodes, _ := w.Files.Children(pid)
				mu.Lock()
				defer mu.Unlock()
				for _, n := range nodes {
					if n.IsFolder {
						next = append(next, &n.ID)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		level = next
	}
	return nil
}

func printTree(w *workspace.Workspace, pid *string, indent string, depth int) {
	if depth == 0 {
		return
	}
	nodes, ok := w.Files.Children(pid)
	if !ok {
		return
	}
	for _, n := range nodes {
		printNodes([]models.Node{n}, indent)
		if n.IsFolder {
			printTree(w, &n.ID, indent+"  ", depth-1)
		}
	}
}

func cmdMkdir(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("mkdir", flag.ExitOnError)
	parent := parentFlag(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: mkdir [-parent ID] NAME")
	}
	return create(ctx, w, models.CreateDetails{Name: fs.Arg(0), IsFolder: true, ParentID: optional(*parent)})
}

func cmdTouch(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("touch", flag.ExitOnError)
	parent := parentFlag(fs)
	content := fs.String("content", "", "Initial file content")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: touch [-parent ID] [-content TEXT] NAME")
	}
	return create(ctx, w, models.CreateDetails{Name: fs.Arg(0), ParentID: optional(*parent), Content: content})
}

func create(ctx context.Context, w *workspace.Workspace, d models.CreateDetails) error {
	if err := w.Files.Load(ctx, d.ParentID, false); err != nil {
		return err
	}
	n, err := w.Files.Create(ctx, d)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", n.Name, n.ID)
	siblings, _ := w.Files.Children(d.ParentID)
	printNodes(siblings, "  ")
	return nil
}

func cmdMv(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("mv", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return errors.New("usage: mv ID NEWNAME")
	}
	n, err := w.Files.Rename(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Printf("renamed %s to %s\n", n.ID, n.Name)
	return nil
}

func cmdRm(ctx context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	parent := parentFlag(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: rm [-parent ID] ID")
	}
	pid := optional(*parent)
	if err := w.Files.Load(ctx, pid, false); err != nil {
		return err
	}
	if err := w.Files.Delete(ctx, fs.Arg(0), pid); err != nil {
		return err
	}
	siblings, _ := w.Files.Children(pid)
	names := make([]string, 0, len(siblings))
	for _, n := range siblings {
		names = append(names, n.Name)
	}
	fmt.Printf("deleted %s; remaining: %s\n", fs.Arg(0), strings.Join(names, ", "))
	return nil
}

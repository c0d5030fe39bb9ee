// swalang is a command-line client for the lesson tree and the word
// suggestion board.
//
// Sub-commands:
//
//	swalang ls [-parent ID] [-force]          List a folder
//	swalang tree [-depth N]                   Print the tree
//	swalang mkdir [-parent ID] NAME           Create a folder
//	swalang touch [-parent ID] [-content T] NAME  Create a file
//	swalang mv ID NEWNAME                     Rename a node
//	swalang rm [-parent ID] ID                Delete a node
//	swalang suggestions                       List suggestions with scores
//	swalang vote ID up|down                   Toggle a vote
//	swalang watch [-metrics ADDR]             Print every state change
//	swalang whoami                            Show the session
//
// The backend and credentials come from the environment (see internal/config).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fruitsalade/swalang/internal/config"
	"github.com/fruitsalade/swalang/internal/logging"
	"github.com/fruitsalade/swalang/internal/workspace"
)

type command struct {
	run   func(ctx context.Context, w *workspace.Workspace, args []string) error
	usage string
}

var commands = map[string]command{
	"ls":          {cmdLs, "ls [-parent ID] [-force]"},
	"tree":        {cmdTree, "tree [-depth N]"},
	"mkdir":       {cmdMkdir, "mkdir [-parent ID] NAME"},
	"touch":       {cmdTouch, "touch [-parent ID] [-content TEXT] NAME"},
	"mv":          {cmdMv, "mv ID NEWNAME"},
	"rm":          {cmdRm, "rm [-parent ID] ID"},
	"suggestions": {cmdSuggestions, "suggestions"},
	"vote":        {cmdVote, "vote ID up|down"},
	"watch":       {cmdWatch, "watch [-metrics ADDR] [-interval D]"},
	"whoami":      {cmdWhoami, "whoami"},
}

func main() {
	global := flag.NewFlagSet("swalang", flag.ExitOnError)
	verbosity := global.Int("v", 1, "Verbosity level: 0=quiet, 1=info, 2=debug")
	global.Usage = usage
	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg, *verbosity)
	defer logging.Sync()

	if cfg.Backend == config.BackendREST && cfg.Token == "" && term.IsTerminal(int(syscall.Stdin)) {
		token, err := promptToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.Token = token
	}

	w, err := workspace.Open(cfg)
	if err != nil {
		logging.Fatal("open workspace", zap.Error(err))
	}

	ctx := logging.WithOperation(context.Background(), args[0])
	runErr := cmd.run(ctx, w, args[1:])

	closeCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if err := w.Close(closeCtx); err != nil {
		logging.Warn("close workspace", zap.Error(err))
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: swalang [-v N] <command> [flags]\n\nCommands:\n")
	for _, name := range []string{"ls", "tree", "mkdir", "touch", "mv", "rm", "suggestions", "vote", "watch", "whoami"} {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

// setupLogging picks the level from -v and switches to JSON when stderr is
// not a terminal and LOG_FORMAT was not set explicitly.
func setupLogging(cfg *config.Config, verbosity int) {
	level := cfg.LogLevel
	switch verbosity {
	case 0:
		level = "error"
	case 1:
	default:
		level = "debug"
	}
	format := cfg.LogFormat
	if os.Getenv("LOG_FORMAT") == "" && !term.IsTerminal(int(os.Stderr.Fd())) {
		format = "json"
	}
	if err := logging.Init(logging.Config{Level: level, Format: format}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: logging init: %v\n", err)
		os.Exit(1)
	}
}

func promptToken() (string, error) {
	fmt.Fprint(os.Stderr, "Access token: ")
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		// Not a real terminal after all; fall back to a plain read.
		line, rerr := bufio.NewReader(os.Stdin).ReadString('\n')
		if rerr != nil {
			return "", fmt.Errorf("read token: %w", rerr)
		}
		b = []byte(line)
	}
	return strings.TrimSpace(string(b)), nil
}

func cmdWhoami(_ context.Context, w *workspace.Workspace, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	fs.Parse(args)

	s := w.Session()
	fmt.Printf("User:    %s\n", s.UserID)
	if s.Email != "" {
		fmt.Printf("Email:   %s\n", s.Email)
	}
	if s.Role != "" {
		fmt.Printf("Role:    %s\n", s.Role)
	}
	switch {
	case s.Token == "":
		fmt.Printf("Token:   none\n")
	case s.ExpiresAt.IsZero():
		fmt.Printf("Token:   no expiry\n")
	case s.IsExpired(0):
		fmt.Printf("Token:   expired %s ago\n", time.Since(s.ExpiresAt).Round(time.Second))
	default:
		fmt.Printf("Token:   expires in %s\n", time.Until(s.ExpiresAt).Round(time.Second))
	}
	return nil
}

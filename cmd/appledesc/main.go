// appledesc - decode Apple description dumps
//
// Usage:
//
//	appledesc fragment [text...]   Decode one description fragment
//	appledesc tree [file]          Decode an ioreg style +-o node dump
//	appledesc detect [text...]     Show the innermost bracketed span
//
// Input is read from stdin when no text or file is given, or when it is "-".
// Defaults come from LOG_LEVEL and APPLEDESC_* variables, optionally set in
// a .env file in the working directory.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/EC-DIGIT-CSIRC/sysdiagnose-sub000/internal/config"
)

const version = "0.3.0"

func main() {
	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintln(os.Stderr, "appledesc: .env not loaded:", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "appledesc: config error:", err)
		os.Exit(2)
	}

	app := newApp(cfg, os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "appledesc:", err)
		os.Exit(1)
	}
}

func newApp(cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	r := &runner{stdin: stdin}
	return &cli.App{
		Name:      "appledesc",
		Usage:     "decode Apple description dumps into JSON or YAML",
		Version:   version,
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel, Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: cfg.Format, Usage: "json, jsonl or yaml"},
			&cli.StringFlag{Name: "non-ascii", Value: cfg.NonASCII, Usage: "preserve or replace non-ASCII input"},
			&cli.StringFlag{Name: "strategy", Value: cfg.Strategy, Usage: "stack or substitute inline decoding"},
			&cli.StringFlag{Name: "merge", Value: cfg.Merge, Usage: "replace or deep merge of node body metadata"},
			&cli.IntFlag{Name: "max-depth", Value: cfg.MaxDepth, Usage: "deepest node nesting kept in trees (0 for no bound)"},
			&cli.IntFlag{Name: "max-line-size", Value: cfg.MaxLineSize, Usage: "longest accepted input line in bytes"},
		},
		Before: func(c *cli.Context) error {
			return r.setup(c, stderr)
		},
		After: func(c *cli.Context) error {
			r.summary()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "fragment",
				Usage:     "decode one description fragment",
				ArgsUsage: "[text...]",
				Action:    r.fragment,
			},
			{
				Name:      "tree",
				Usage:     "decode a +-o node dump",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "select", Aliases: []string{"s"}, Usage: "only print nodes at this slash-separated path (* and ** allowed)"},
				},
				Action: r.tree,
			},
			{
				Name:      "detect",
				Usage:     "show the innermost bracketed span of a fragment",
				ArgsUsage: "[text...]",
				Action:    r.detect,
			},
		},
	}
}

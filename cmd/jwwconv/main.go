// Command jwwconv inspects Jw_cad drawings and converts them to DXF.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/jwwconv/core/drawing"
	"github.com/FocuswithJustin/jwwconv/core/errors"
	"github.com/FocuswithJustin/jwwconv/core/sqlite"
	"github.com/FocuswithJustin/jwwconv/internal/config"
	"github.com/FocuswithJustin/jwwconv/internal/logging"
)

const version = "0.4.0"

// Exit statuses.
const (
	exitOK       = 0
	exitNoInputs = 1
	exitFatal    = 2
	exitIssues   = 3
)

// exitCode ends a command with a status and no further message.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

// CLI defines the command-line interface for jwwconv.
type CLI struct {
	Config    kong.ConfigFlag `help:"Load flag defaults from a TOML file" type:"path"`
	LogLevel  string          `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
	LogFormat string          `help:"Log format (text, json)" default:"text" enum:"text,json"`

	Audit    AuditCmd    `cmd:"" help:"Run conversion-oriented health checks"`
	BBox     BBoxCmd     `cmd:"" name:"bbox" help:"Calculate drawing extents"`
	Stats    StatsCmd    `cmd:"" help:"Show entity distribution statistics"`
	Report   ReportCmd   `cmd:"" help:"Emit combined audit, extents and statistics"`
	Info     InfoCmd     `cmd:"" help:"Show a drawing summary"`
	Probe    ProbeCmd    `cmd:"" help:"Check whether a file is a Jw_cad drawing"`
	ToDXF    ToDXFCmd    `cmd:"" name:"to-dxf" help:"Convert one drawing to DXF"`
	ToDXFDir ToDXFDirCmd `cmd:"" name:"to-dxf-dir" help:"Convert all drawings in a directory"`
	Plot     PlotCmd     `cmd:"" help:"Render a drawing to PNG or SVG"`
	Watch    WatchCmd    `cmd:"" help:"Re-convert drawings as they change"`
	Query    QueryCmd    `cmd:"" help:"List exchange entities matching a selector"`
	Runs     RunsCmd     `cmd:"" help:"List batch runs recorded in a catalog"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// ConvertFlags are shared by every command that builds an exchange
// document.
type ConvertFlags struct {
	ExplodeInserts  bool `help:"Expand INSERT references into transformed primitive entities"`
	MaxBlockNesting int  `help:"Maximum block nesting depth for INSERT expansion" default:"32"`
}

func (f ConvertFlags) options() drawing.ConvertOptions {
	return drawing.ConvertOptions{ExplodeInserts: f.ExplodeInserts, MaxBlockNesting: f.MaxBlockNesting}
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(e *env) error {
	fmt.Fprintf(e.stdout, "jwwconv version %s\n", version)
	info := sqlite.GetInfo()
	fmt.Fprintf(e.stdout, "sqlite: %s (%s)\n", info.DriverType, info.Package)
	return nil
}

// run parses args, executes the selected command and returns the exit
// status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (status int) {
	var cli CLI
	exited := false
	parser, err := kong.New(&cli,
		kong.Name("jwwconv"),
		kong.Description("Jw_cad drawing inspector and DXF converter"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Configuration(config.Loader, config.Paths()...),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) {
			exited = true
			status = code
		}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "jwwconv: %v\n", err)
		return exitFatal
	}

	kctx, err := parser.Parse(args)
	if exited {
		return status
	}
	if err != nil {
		fmt.Fprintf(stderr, "jwwconv: %v\n", err)
		return exitFatal
	}

	level, _ := logging.ParseLevel(cli.LogLevel)
	format, _ := logging.ParseFormat(cli.LogFormat)
	logging.InitLoggerTo(stderr, level, format)

	e := newEnv(ctx, stdout, stderr)
	err = kctx.Run(e)
	if exited {
		return status
	}
	var code exitCode
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &code):
		return int(code)
	}
	fmt.Fprintf(stderr, "jwwconv: %v\n", err)
	logging.Debug("command_failed", "command", kctx.Command(), "kind", errors.KindOf(err).String(), "error", err.Error())
	return exitFatal
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(status)
}

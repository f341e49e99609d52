package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joeycumines/lsj/internal/action"
	"github.com/joeycumines/lsj/internal/app"
	"github.com/joeycumines/lsj/internal/config"
	"github.com/joeycumines/lsj/internal/keymap"
	"github.com/joeycumines/lsj/internal/procexec"
	"github.com/joeycumines/lsj/internal/scripting"
	"github.com/joeycumines/lsj/internal/trace"
)

const version = "0.1.0"

// traceDefault is the --trace value when the flag is given without a file.
const traceDefault = "-"

// errNoTerminal is returned when lsj is started without a terminal.
var errNoTerminal = errors.New("lsj needs an interactive terminal on stdin and stdout")

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configDir   string
	trace       string
	checkConfig bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "lsj [DIR]",
		Short:         "A keyboard-driven three-pane file browser",
		Long:          "lsj browses DIR (default: the working directory) in parent, current and preview panes.\nKeys, commands and previews are configured in JavaScript through init.js.",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			return run(cmd.Context(), opts, dir, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configDir, "config-dir", "", "configuration root (default: $"+config.EnvConfigDir+", then ~/.config/lsj)")
	f.StringVar(&opts.trace, "trace", "", "write a diagnostics trace, to FILE when given")
	f.Lookup("trace").NoOptDefVal = traceDefault
	f.BoolVar(&opts.checkConfig, "check-config", false, "load the configuration, report problems and exit")
	return cmd
}

func run(ctx context.Context, opts options, dir string, stdout io.Writer) error {
	if opts.trace != "" {
		_ = os.Setenv(trace.EnvEnable, "1")
		if opts.trace != traceDefault {
			_ = os.Setenv(trace.EnvFile, opts.trace)
		}
	}
	tr, closer, err := trace.Open()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	defer func() { _ = closer.Close() }()

	loc, found := config.Discover(opts.configDir)
	messages := scripting.NewMessageLog(0)
	orch := procexec.New(nil, tr)
	engine := scripting.New(scripting.Options{
		Location: loc,
		Runner:   orch,
		Messages: messages,
		Trace:    tr,
	})
	loaded, loadErr := engine.Load(ctx)

	if opts.checkConfig {
		return checkConfig(stdout, opts, loc, found, loaded, loadErr)
	}
	if loaded.Keys == nil {
		// the embedded defaults failed, nothing usable was loaded
		return loadErr
	}
	if loadErr != nil {
		messages.Logger().Error(loadErr.Error())
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNoTerminal
	}

	state, err := app.New(app.Options{
		Dir:       dir,
		Root:      loc.Root,
		Store:     loaded.Store,
		Keys:      loaded.Keys,
		Scripts:   engine,
		Previewer: engine,
		Runner:    orch,
		Messages:  messages,
		Trace:     tr,
		Reload: func() (*config.Store, *keymap.Map[action.Handler], error) {
			l, err := engine.Load(ctx)
			return l.Store, l.Keys, err
		},
	})
	if err != nil {
		return err
	}
	model := app.NewModel(ctx, state)
	defer func() { _ = model.Close() }()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	orch.Terminal = procexec.ProgramTerminal{Program: p}
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	return nil
}

func checkConfig(w io.Writer, opts options, loc config.Location, found bool, loaded scripting.Loaded, loadErr error) error {
	if loadErr != nil {
		return loadErr
	}
	if !found {
		_, _ = fmt.Fprintf(w, "no %s found, using defaults (searched: %s)\n",
			config.EntryFile, strings.Join(config.CandidateDirs(opts.configDir), ", "))
		return nil
	}
	_, _ = fmt.Fprintf(w, "%s: ok, %d key bindings\n", loc.Entry, loaded.Keys.Len())
	return nil
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/waffle/internal/buildinfo"
	"github.com/dmitrijs2005/waffle/internal/client/config"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// options holds the persistent flags and what PersistentPreRunE derives
// from them.
type options struct {
	configPath string
	backend    string
	offset     time.Duration

	cfg *config.Config
	log logging.Logger
	in  *bufio.Reader
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "waffleadmin",
		Short:        "Operator tools for a Waffle group",
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to a JSON config file")
	pf.StringVar(&opts.backend, "backend", "", "store backend: gist, memory, s3 or postgres")
	pf.DurationVar(&opts.offset, "offset", 0, "UTC offset of the group's week, e.g. -5h")

	root.AddCommand(newSealCmd(opts))
	root.AddCommand(newOpenCmd(opts))
	root.AddCommand(newWeekCmd(opts))
	root.AddCommand(newCleanupCmd(opts))
	return root
}

func (o *options) load(cmd *cobra.Command) error {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	if o.configPath != "" {
		if err := cfg.ApplyFile(o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if o.backend != "" {
		cfg.StoreBackend = o.backend
	}
	if cmd.Flags().Changed("offset") {
		cfg.WeekOffset = o.offset
	}

	o.cfg = cfg
	o.log = logging.NewText(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

// readSecret prompts on the command's error stream. A terminal is read
// without echo; anything else is read line by line.
func (o *options) readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt+": ")

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	if o.in == nil {
		o.in = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := o.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

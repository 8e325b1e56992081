// Package cli is the cobra command tree of the valyu binary.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/valyu-go/internal/app"
)

// AppFactory builds the application on first use, so that help and flag
// errors do not need a valid configuration.
type AppFactory func(ctx context.Context) (*app.App, error)

type options struct {
	newApp  AppFactory
	jsonOut bool
	app     *app.App
}

func NewRootCmd(newApp AppFactory) *cobra.Command {
	opts := &options{newApp: newApp}

	rootCmd := &cobra.Command{
		Use:           "valyu",
		Short:         "Valyu search, answers and deep research from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.app != nil {
				opts.app.Close()
				opts.app = nil
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print raw JSON responses")

	rootCmd.AddCommand(newSearchCmd(opts))
	rootCmd.AddCommand(newAskCmd(opts))
	rootCmd.AddCommand(newContentsCmd(opts))
	rootCmd.AddCommand(newResearchCmd(opts))

	return rootCmd
}

func (o *options) App(ctx context.Context) (*app.App, error) {
	if o.app != nil {
		return o.app, nil
	}
	a, err := o.newApp(ctx)
	if err != nil {
		return nil, err
	}
	o.app = a
	return a, nil
}

// print writes v as JSON with --json, otherwise calls text.
func (o *options) print(w io.Writer, v any, text func(io.Writer)) error {
	if !o.jsonOut {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

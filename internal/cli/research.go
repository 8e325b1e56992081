package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
	"github.com/kitbuilder587/valyu-go/internal/service"
)

func newResearchCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "research", Short: "Run and manage deep research tasks"}
	cmd.AddCommand(newResearchCreateCmd(opts))
	cmd.AddCommand(newResearchStatusCmd(opts))
	cmd.AddCommand(newResearchWaitCmd(opts))
	cmd.AddCommand(newResearchListCmd(opts))
	cmd.AddCommand(newResearchUpdateCmd(opts))
	cmd.AddCommand(newResearchCancelCmd(opts))
	cmd.AddCommand(newResearchDeleteCmd(opts))
	cmd.AddCommand(newResearchHistoryCmd(opts))
	return cmd
}

// waitFlags are shared by create --wait and wait.
type waitFlags struct {
	interval time.Duration
	maxWait  time.Duration
}

func (w *waitFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&w.interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().DurationVar(&w.maxWait, "max-wait", 0, "give up waiting after this long (default by mode)")
}

// apply overrides the configured wait budget for this run.
func (w *waitFlags) apply(opts *options, cmd *cobra.Command) error {
	a, err := opts.App(cmd.Context())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		if w.interval <= 0 {
			return errors.New("--interval must be positive")
		}
		a.Config.Research.PollInterval = w.interval
	}
	if cmd.Flags().Changed("max-wait") {
		if w.maxWait <= 0 {
			return errors.New("--max-wait must be positive")
		}
		a.Config.Research.MaxWait = w.maxWait
	}
	return nil
}

func newResearchCreateCmd(opts *options) *cobra.Command {
	var (
		mode      string
		formats   []string
		strategy  string
		urls      []string
		previous  []string
		webhook   string
		codeExec  bool
		searchTyp string
		include   []string
		exclude   []string
		wait      bool
		wf        waitFlags
	)

	cmd := &cobra.Command{
		Use:   "create <query>",
		Short: "Start a research task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := valyu.NewResearchRequest(joinArgs(args)).
				WithStrategy(strategy).
				WithURLs(urls...).
				WithPreviousReports(previous...).
				WithWebhookURL(webhook)

			if mode != "" {
				m, err := valyu.ParseMode(mode)
				if err != nil {
					return err
				}
				req = req.WithMode(m)
			}
			if len(formats) > 0 {
				req = req.WithOutputFormats(formats...)
			}
			if cmd.Flags().Changed("code-execution") {
				req = req.WithCodeExecution(codeExec)
			}
			if searchTyp != "" || len(include) > 0 || len(exclude) > 0 {
				req = req.WithSearch(valyu.ResearchSearchConfig{
					SearchType:      searchTyp,
					IncludedSources: include,
					ExcludedSources: exclude,
				})
			}

			if err := wf.apply(opts, cmd); err != nil {
				return err
			}
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}

			record, err := a.Research.Start(cmd.Context(), domain.CLIOwner, req)
			if err != nil {
				return err
			}

			if !wait {
				return opts.print(cmd.OutOrStdout(), record, func(w io.Writer) {
					fmt.Fprintf(w, "Created %s (%s)\n", record.ID, orDash(string(record.Mode)))
				})
			}

			if !opts.jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s, waiting...\n", record.ID)
			}
			return waitOne(opts, cmd, a.Research, record.ID)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&mode, "mode", "m", "", "fast, lite or heavy")
	f.StringSliceVar(&formats, "format", nil, "output formats: markdown, pdf")
	f.StringVar(&strategy, "strategy", "", "research strategy instructions")
	f.StringSliceVar(&urls, "url", nil, "URL to include (up to 10)")
	f.StringSliceVar(&previous, "previous", nil, "previous report id to build on (up to 3)")
	f.StringVar(&webhook, "webhook", "", "HTTPS URL notified on completion")
	f.BoolVar(&codeExec, "code-execution", true, "allow code execution")
	f.StringVar(&searchTyp, "search-type", "", "all, web or proprietary")
	f.StringSliceVar(&include, "include", nil, "only these sources")
	f.StringSliceVar(&exclude, "exclude", nil, "never these sources")
	f.BoolVarP(&wait, "wait", "w", false, "wait for the task to finish")
	wf.register(cmd)

	return cmd
}

func newResearchStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show the current state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := a.Research.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), snap, func(w io.Writer) { printStatus(w, snap) })
		},
	}
}

func newResearchWaitCmd(opts *options) *cobra.Command {
	var wf waitFlags

	cmd := &cobra.Command{
		Use:   "wait <id>...",
		Short: "Wait for one or more tasks to finish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wf.apply(opts, cmd); err != nil {
				return err
			}
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return waitOne(opts, cmd, a.Research, args[0])
			}

			results := a.Research.WaitAll(cmd.Context(), args)
			var failed int
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}

			err = opts.print(cmd.OutOrStdout(), waitResultsJSON(results), func(w io.Writer) {
				for _, r := range results {
					if r.Err != nil {
						fmt.Fprintf(w, "%s\terror: %v\n", r.ID, r.Err)
						continue
					}
					fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Status.Status)
				}
			})
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d waits failed", failed, len(results))
			}
			return nil
		},
	}
	wf.register(cmd)
	return cmd
}

func waitOne(opts *options, cmd *cobra.Command, research *service.ResearchService, id string) error {
	out := cmd.OutOrStdout()
	var onStatus func(*valyu.ResearchStatus)
	if !opts.jsonOut {
		onStatus = func(s *valyu.ResearchStatus) {
			fmt.Fprintf(out, "%s: %s%s\n", s.ID, s.Status, progressSuffix(s))
		}
	}

	snap, err := research.Wait(cmd.Context(), id, onStatus)
	if err != nil {
		if valyu.IsTimeout(err) && !opts.jsonOut {
			fmt.Fprintf(out, "%s is still running; check later with: valyu research status %s\n", id, id)
		}
		return err
	}
	return opts.print(out, snap, func(w io.Writer) { printResult(w, snap) })
}

type waitResultJSON struct {
	ID     string                `json:"id"`
	Status *valyu.ResearchStatus `json:"status,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func waitResultsJSON(results []service.WaitResult) []waitResultJSON {
	out := make([]waitResultJSON, len(results))
	for i, r := range results {
		out[i] = waitResultJSON{ID: r.ID, Status: r.Status}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}

func newResearchListCmd(opts *options) *cobra.Command {
	var (
		limit    int
		apiKeyID string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List research tasks known to the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			if apiKeyID == "" {
				apiKeyID = a.Config.Valyu.APIKeyID
			}

			list, err := a.Client.Research.List(cmd.Context(), valyu.ListOptions{APIKeyID: apiKeyID, Limit: limit})
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), list, func(w io.Writer) {
				for _, t := range list.Data {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, orDash(string(t.Mode)), t.Query)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of tasks")
	cmd.Flags().StringVar(&apiKeyID, "api-key-id", "", "API key id to list tasks for (default VALYU_API_KEY_ID)")
	return cmd
}

func newResearchUpdateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <instruction>",
		Short: "Send a follow-up instruction to a running task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Research.Update(cmd.Context(), args[0], joinArgs(args[1:]))
			if err != nil {
				return err
			}
			return printOperation(opts, cmd, "updated", args[0], res)
		},
	}
}

func newResearchCancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Research.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOperation(opts, cmd, "cancelled", args[0], res)
		},
	}
}

func newResearchDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Research.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOperation(opts, cmd, "deleted", args[0], res)
		},
	}
}

func newResearchHistoryCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List tasks started from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			records, err := a.Research.History(cmd.Context(), domain.CLIOwner, limit)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), records, func(w io.Writer) { printHistory(w, records) })
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of tasks, 0 for all")
	return cmd
}

// printOperation reports a rejected operation as an error so the exit code
// reflects it.
func printOperation(opts *options, cmd *cobra.Command, verb, id string, res *valyu.OperationResult) error {
	if err := opts.print(cmd.OutOrStdout(), res, func(w io.Writer) {
		if res.Success {
			fmt.Fprintf(w, "%s %s\n", id, verb)
		}
	}); err != nil {
		return err
	}
	if !res.Success {
		reason := res.Error
		if reason == "" {
			reason = res.Message
		}
		return fmt.Errorf("%s not %s: %s", id, verb, reason)
	}
	return nil
}

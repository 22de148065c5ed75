package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"dispatchline/internal/app"
	"dispatchline/internal/console"
	dispatchsdk "dispatchline/sdk/go"
)

func consoleCmd() *cobra.Command {
	var route, officer, deputy string
	var noStream bool
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive dispatch command console",
		Long: `Reads commands line by line and shows each outcome in the console log.
Type "help" for the command list and "exit" to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if route != "" {
				cfg.Console.Route = route
			}
			if officer != "" {
				cfg.Console.ActiveOfficer = officer
			}
			if deputy != "" {
				cfg.Console.ActiveDeputy = deputy
			}
			logger := newLogger(cfg, false)
			client := apiClient()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			sess, err := app.NewSession(ctx, client, cfg, logger)
			if err != nil {
				return err
			}
			c := sess.Console
			out := cmd.OutOrStdout()

			var outMu sync.Mutex
			printf := func(format string, v ...any) {
				outMu.Lock()
				defer outMu.Unlock()
				fmt.Fprintf(out, format, v...)
			}
			defer c.Log.Subscribe(func(e console.LogEntry) {
				printf("%s\n", console.RenderEntry(e))
			})()
			defer watchBoard(c, func(s string) { printf("%s", s) })()
			defer c.Modals.Subscribe(func(ev console.ModalEvent) {
				if !ev.Open || ev.ID != console.ModalManage911Call {
					return
				}
				if call, ok := ev.Payload.(dispatchsdk.Call); ok {
					printf("%s\n", renderCallDetail(call))
				}
			})()

			if cfg.Console.Stream && !noStream {
				go func() {
					err := client.StreamCalls(ctx, c.Calls.Apply)
					if err != nil {
						logger.WithError(err).Warn("live call updates stopped")
					}
				}()
			}

			printf("%d active calls, %d officers, %d deputies on duty. Route %s.\n",
				len(sess.Dashboard.Calls), len(sess.Dashboard.Officers), len(sess.Dashboard.Deputies), c.Route())
			printf("%s\n", console.Banner)
			return runREPL(ctx, c, cmd.InOrStdin(), func(s string) { printf("%s", s) })
		},
	}
	cmd.Flags().StringVar(&route, "route", "", "page route: /dispatch, /officer or /ems-fd")
	cmd.Flags().StringVar(&officer, "officer", "", "active officer id or callsign")
	cmd.Flags().StringVar(&deputy, "deputy", "", "active deputy id or callsign")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "do not subscribe to live call updates")
	return cmd
}

// runREPL submits input lines one at a time in the order they were read.
func runREPL(ctx context.Context, c *console.Console, in io.Reader, write func(string)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	write(c.Prompt())
	for {
		select {
		case <-ctx.Done():
			write("\n")
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "exit", "quit":
				return nil
			}
			if err := c.Submit(ctx, line); errors.Is(err, console.ErrBusy) {
				write("Still processing the previous command.\n")
			}
			write(c.Prompt())
		}
	}
}

// watchBoard redraws the call board each time the filters change.
func watchBoard(c *console.Console, write func(string)) func() {
	return c.Filters.Subscribe(func(f console.Filter) {
		write(renderCallBoard(c, f) + "\n")
	})
}

func renderCallBoard(c *console.Console, f console.Filter) string {
	calls := c.Calls.Visible(f, console.IsDispatchRoute(c.Route()))
	tw := table.NewWriter()
	tw.SetTitle("Active 911 calls")
	tw.AppendHeader(callHeader)
	tw.AppendRows(callRows(calls))
	if f.ShowFilters {
		search := f.Search
		if search == "" {
			search = "(none)"
		}
		tw.SetCaption("Search: %s | Status: %s | %d of %d calls", search, f.Status, len(calls), c.Calls.Len())
	}
	return tw.Render()
}

func renderCallDetail(call dispatchsdk.Call) string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("911 call #%d", call.CaseNumber))
	tw.AppendRows([]table.Row{
		{"Caller", call.Name},
		{"Location", call.Location},
		{"Postal", call.Postal},
		{"Status", call.Status},
		{"Description", call.Description},
		{"Units", callsigns(call.AssignedUnits)},
		{"Updated", call.UpdatedAt},
	})
	return tw.Render()
}

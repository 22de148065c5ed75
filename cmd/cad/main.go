package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dispatchline/internal/config"
	"dispatchline/internal/db"
	"dispatchline/internal/engine"
	"dispatchline/internal/migrate"
	dispatchsdk "dispatchline/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "cad",
	Short: "Computer-aided dispatch CLI",
	Long: `cad runs a 911 dispatch backend and a terminal dispatch console.
- serve: the HTTP API (calls, units, incidents, event log, live stream).
- console: type commands like "view call 12", "assign 12 <unit>", "filter status pending".
- dashboard: one-shot boards of active calls, officers, deputies and incidents.
- call / unit / incident: scripted management against the API.
- apikey / token: credentials for the API.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("config", "", "config file (default <workspace>/dispatch.yml)")
	flags.String("api-url", "http://127.0.0.1:8080", "dispatch API base URL")
	flags.String("api-key", "", "API key sent as X-Api-Key")
	flags.String("token", "", "bearer token")
	flags.String("log-level", "", "log level (overrides dispatch.yml)")
	for _, name := range []string{"workspace", "json", "config", "api-url", "api-key", "token", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(consoleCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(callCmd())
	rootCmd.AddCommand(unitCmd())
	rootCmd.AddCommand(incidentCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace database and dispatch.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			if err := withEngine(cmd.Context(), func(context.Context, engine.Engine) error { return nil }); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Printf("Workspace ready; kept existing %s\n", path)
				return nil
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Workspace ready; wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing dispatch.yml")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(viper.GetString("workspace"))
}

func newLogger(cfg *config.Config, jsonFormat bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	level := viper.GetString("log-level")
	if level == "" && cfg != nil {
		level = cfg.Logging.Level
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	if jsonFormat || (cfg != nil && cfg.Logging.Format == "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func apiClient() *dispatchsdk.Client {
	client := dispatchsdk.New(viper.GetString("api-url"))
	client.APIKey = viper.GetString("api-key")
	client.BearerToken = viper.GetString("token")
	return client
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders rows unless --json is set, in which case v is printed.
func printTable(v any, header table.Row, rows []table.Row) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
	return nil
}

func callsigns(units []dispatchsdk.AssignedUnit) string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		name := u.Callsign
		if name == "" {
			name = u.UnitID
		}
		if u.IsPrimary {
			name += "*"
		}
		out = append(out, name)
	}
	return strings.Join(out, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dispatchline/internal/app"
	"dispatchline/internal/domain"
	"dispatchline/internal/engine"
	"dispatchline/internal/repo"
	"dispatchline/internal/server"
	dispatchsdk "dispatchline/sdk/go"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show active calls, units and incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			dash, err := app.LoadDashboard(cmd.Context(), apiClient())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(dash)
			}
			fmt.Println("Active 911 calls")
			if err := printCalls(dash.Calls); err != nil {
				return err
			}
			fmt.Println("Officers")
			if err := printUnits(dash.Officers); err != nil {
				return err
			}
			fmt.Println("Deputies")
			if err := printUnits(dash.Deputies); err != nil {
				return err
			}
			fmt.Println("Active incidents")
			return printIncidents(dash.Incidents)
		},
	}
}

var callHeader = table.Row{"Case", "Caller", "Location", "Postal", "Status", "Units", "Updated"}

func callRows(calls []dispatchsdk.Call) []table.Row {
	rows := make([]table.Row, 0, len(calls))
	for _, c := range calls {
		rows = append(rows, table.Row{fmt.Sprintf("#%d", c.CaseNumber), c.Name, c.Location, c.Postal, c.Status, callsigns(c.AssignedUnits), c.UpdatedAt})
	}
	return rows
}

func printCalls(calls []dispatchsdk.Call) error {
	return printTable(calls, callHeader, callRows(calls))
}

func printUnits(units []dispatchsdk.Unit) error {
	rows := make([]table.Row, 0, len(units))
	for _, u := range units {
		active := ""
		if u.ActiveCallID != nil {
			active = *u.ActiveCallID
		}
		rows = append(rows, table.Row{u.ID, u.Callsign, u.Name, u.Department, u.Status, active})
	}
	return printTable(units, table.Row{"ID", "Callsign", "Name", "Department", "Status", "Active call"}, rows)
}

func printIncidents(items []dispatchsdk.Incident) error {
	rows := make([]table.Row, 0, len(items))
	for _, inc := range items {
		rows = append(rows, table.Row{fmt.Sprintf("#%d", inc.CaseNumber), inc.Description, yesNo(inc.FirearmsInvolved), yesNo(inc.InjuriesOrFatalities), yesNo(inc.ArrestsMade), callsigns(inc.InvolvedUnits)})
	}
	return printTable(items, table.Row{"Case", "Description", "Firearms", "Injuries", "Arrests", "Units"}, rows)
}

func printCall(c dispatchsdk.Call) error {
	if viper.GetBool("json") {
		return printJSON(c)
	}
	fmt.Println(renderCallDetail(c))
	return nil
}

func callCmd() *cobra.Command {
	call := &cobra.Command{Use: "call", Short: "Manage 911 calls"}
	call.AddCommand(callListCmd())
	call.AddCommand(callCreateCmd())
	call.AddCommand(callStatusCmd())
	call.AddCommand(callAssignCmd("assign"))
	call.AddCommand(callAssignCmd("unassign"))
	return call
}

func callListCmd() *cobra.Command {
	var q dispatchsdk.CallQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active 911 calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			calls, err := apiClient().ListCalls(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printCalls(calls)
		},
	}
	cmd.Flags().StringVar(&q.Status, "status", "", "all, pending, accepted or declined")
	cmd.Flags().StringVar(&q.Search, "q", "", "search text")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum calls")
	return cmd
}

func callCreateCmd() *cobra.Command {
	var name, location, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a 911 call",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient().CreateCall(cmd.Context(), name, location, description)
			if err != nil {
				return err
			}
			return printCall(c)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "caller name")
	cmd.Flags().StringVar(&location, "location", "", "location")
	cmd.Flags().StringVar(&description, "description", "", "description")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func callStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <call-id> <pending|accepted|declined|ended>",
		Short: "Change a call's status; \"ended\" ends the call",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiClient()
			if args[1] == "ended" {
				c, err := client.EndCall(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printCall(c)
			}
			c, err := client.SetCallStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printCall(c)
		},
	}
	return cmd
}

func callAssignCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <call-id> <unit-id>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a unit on a 911 call",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiClient()
			apply := client.AssignCall
			if action == "unassign" {
				apply = client.UnassignCall
			}
			c, err := apply(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printCall(c)
		},
	}
}

func unitCmd() *cobra.Command {
	unit := &cobra.Command{Use: "unit", Short: "Manage officers and deputies"}

	var kind string
	list := &cobra.Command{
		Use:   "list",
		Short: "List units",
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := apiClient().ListUnits(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return printUnits(units)
		},
	}
	list.Flags().StringVar(&kind, "kind", "", "officer or deputy")

	var createKind, callsign, name, department string
	create := &cobra.Command{
		Use:   "create",
		Short: "Put a unit on duty",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := apiClient().CreateUnit(cmd.Context(), createKind, callsign, name, department)
			if err != nil {
				return err
			}
			return printUnits([]dispatchsdk.Unit{u})
		},
	}
	create.Flags().StringVar(&createKind, "kind", "officer", "officer or deputy")
	create.Flags().StringVar(&callsign, "callsign", "", "callsign")
	create.Flags().StringVar(&name, "name", "", "unit name")
	create.Flags().StringVar(&department, "department", "", "department")
	_ = create.MarkFlagRequired("callsign")

	status := &cobra.Command{
		Use:   "status <unit-id> <status>",
		Short: "Set a unit's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := apiClient().SetUnitStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printUnits([]dispatchsdk.Unit{u})
		},
	}

	unit.AddCommand(list, create, status)
	return unit
}

func incidentCmd() *cobra.Command {
	incident := &cobra.Command{Use: "incident", Short: "Manage incidents"}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List incidents",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := apiClient().ListIncidents(cmd.Context(), !all)
			if err != nil {
				return err
			}
			return printIncidents(items)
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include inactive incidents")

	var description string
	var units []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an incident",
		RunE: func(cmd *cobra.Command, args []string) error {
			inc, err := apiClient().CreateIncident(cmd.Context(), description, units)
			if err != nil {
				return err
			}
			return printIncidents([]dispatchsdk.Incident{inc})
		},
	}
	create.Flags().StringVar(&description, "description", "", "description")
	create.Flags().StringSliceVar(&units, "unit", nil, "involved unit id (repeatable)")

	incident.AddCommand(list, create)
	for _, action := range []string{"assign", "unassign"} {
		incident.AddCommand(&cobra.Command{
			Use:   action + " <incident-id> <unit-id>",
			Short: strings.ToUpper(action[:1]) + action[1:] + " a unit on an incident",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				client := apiClient()
				apply := client.AssignIncident
				if action == "unassign" {
					apply = client.UnassignIncident
				}
				inc, err := apply(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printIncidents([]dispatchsdk.Incident{inc})
			},
		})
	}
	return incident
}

func apiKeyCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys in the local workspace",
	}

	var actor, role, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the key is shown once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != "dispatch" && role != "unit" {
				return fmt.Errorf("--role must be dispatch or unit")
			}
			secret := make([]byte, 24)
			if _, err := rand.Read(secret); err != nil {
				return err
			}
			key := "cad_" + hex.EncodeToString(secret)
			rec := domain.APIKey{
				ID:      uuid.NewString(),
				ActorID: actor,
				Role:    role,
				Name:    name,
				KeyHash: repo.HashAPIKey(key),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.InsertAPIKey(ctx, rec); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": rec.ID, "actor_id": actor, "role": role, "key": key})
				}
				fmt.Printf("API key %s for %s (%s):\n%s\n", rec.ID, actor, role, key)
				return nil
			})
		},
	}
	create.Flags().StringVar(&actor, "actor", "", "actor id")
	create.Flags().StringVar(&role, "role", "unit", "dispatch or unit")
	create.Flags().StringVar(&name, "name", "", "label")
	_ = create.MarkFlagRequired("actor")

	var listActor string
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAPIKeys(ctx, listActor)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(items))
				for _, k := range items {
					rows = append(rows, table.Row{k.ID, k.ActorID, k.Role, k.Name, k.CreatedAt})
				}
				return printTable(items, table.Row{"ID", "Actor", "Role", "Name", "Created"}, rows)
			})
		},
	}
	list.Flags().StringVar(&listActor, "actor", "", "only keys for this actor")

	del := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}

	keys.AddCommand(create, list, del)
	return keys
}

func tokenCmd() *cobra.Command {
	var actor string
	var roles []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("CAD_JWT_SECRET (or server.jwt_secret) is required")
			}
			token, err := server.SignToken(secret, actor, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id (token subject)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{"dispatch"}, "role: dispatch or unit (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Dispatch event log",
		Long:  "Every call, unit and incident change, newest first.",
	}
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := apiClient().Events(cmd.Context(), n)
			if err != nil {
				return err
			}
			rows := make([]table.Row, 0, len(items))
			for _, evt := range items {
				rows = append(rows, table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind, evt.EntityID, evt.ActorID})
			}
			return printTable(items, table.Row{"ID", "Time", "Type", "Kind", "Entity", "Actor"}, rows)
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	log.AddCommand(tail)
	return log
}

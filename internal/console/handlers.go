package console

import (
	"context"
	"fmt"
	"strings"

	dispatchsdk "dispatchline/sdk/go"
)

type handler func(ctx context.Context, c *Console, cmd Command, a *args)

var handlers = map[string]handler{
	"help":     handleHelp,
	"open":     handleOpen,
	"view":     handleView,
	"select":   handleView,
	"focus":    handleView,
	"assign":   handleAssign,
	"unassign": handleAssign,
	"search":   handleSearch,
	"clear":    handleClear,
	"filter":   handleFilter,
	"summary":  handleSummary,
	"show":     handleShow,
}

var helpText = strings.Join([]string{
	"Commands:",
	"- help",
	"- open <notepad|name|vehicle|weapon|address|custom|call>",
	"- view call <caseNumber>",
	"- assign <caseNumber> [unitId]",
	"- unassign <caseNumber> [unitId]",
	"- search <text>",
	"- clear search",
	"- filter status <all|pending|accepted|declined>",
	"- summary",
	"- show filters",
}, "\n")

type modalTarget struct {
	id    ModalID
	label string
}

var modalTargets = map[string]modalTarget{
	"notepad":      {ModalNotepad, "notepad"},
	"name":         {ModalNameSearch, "name search"},
	"name-search":  {ModalNameSearch, "name search"},
	"vehicle":      {ModalVehicleSearch, "vehicle search"},
	"weapon":       {ModalWeaponSearch, "weapon search"},
	"address":      {ModalAddressSearch, "address search"},
	"custom":       {ModalCustomFieldSearch, "custom field search"},
	"custom-field": {ModalCustomFieldSearch, "custom field search"},
	"call":         {ModalManage911Call, "911 call manager"},
}

func handleHelp(_ context.Context, c *Console, cmd Command, _ *args) {
	c.info(cmd.Raw, helpText)
}

func handleOpen(_ context.Context, c *Console, cmd Command, a *args) {
	target := a.text()
	if target == "" {
		c.fail(cmd.Raw, "Missing target for open command.")
		return
	}
	input := "open " + target
	m, ok := modalTargets[strings.ToLower(target)]
	if !ok {
		c.fail(input, "Unknown modal target: %s", target)
		return
	}
	c.Modals.Open(m.id, nil)
	c.succeed(input, "Opened %s.", m.label)
}

func handleView(_ context.Context, c *Console, cmd Command, a *args) {
	if subject, _ := a.nextLower(); subject != "call" {
		c.fail(cmd.Raw, "Only call selection is supported.")
		return
	}
	caseNumber, ok := a.next()
	if !ok {
		c.fail(cmd.Raw, "Provide a case number to view.")
		return
	}
	call, ok := c.Calls.FindByCase(caseNumber)
	if !ok {
		c.fail(cmd.Raw, "Call #%s was not found.", caseNumber)
		return
	}
	c.Calls.SetSelected(&call)
	c.Modals.Open(ModalManage911Call, call)
	c.succeed(cmd.Raw, "Opened call #%d.", call.CaseNumber)
}

func handleAssign(ctx context.Context, c *Console, cmd Command, a *args) {
	caseNumber, ok := a.next()
	if !ok {
		c.fail(cmd.Raw, "Provide a case number to update.")
		return
	}
	call, ok := c.Calls.FindByCase(caseNumber)
	if !ok {
		c.fail(cmd.Raw, "Call #%s was not found.", caseNumber)
		return
	}
	unitID, ok := a.next()
	if !ok {
		unitID, _ = ActiveUnitID(c.Route(), c.Units)
	}
	input := fmt.Sprintf("%s %d", cmd.Verb, call.CaseNumber)
	if unitID == "" {
		c.fail(input, "Unit identifier required. Provide a unit ID or use an active unit.")
		return
	}
	if c.client == nil {
		c.fail(input, "Unable to update call: no API client configured.")
		return
	}

	update := c.client.AssignCall
	success := "Assigned unit successfully."
	if cmd.Verb == "unassign" {
		update = c.client.UnassignCall
		success = "Unassigned unit successfully."
	}
	updated, err := update(ctx, call.ID, unitID)
	if err != nil {
		c.logger.WithError(err).WithField("call_id", call.ID).Warn("call update failed")
		c.fail(input, "Unable to update call: %s.", strings.TrimSuffix(err.Error(), "."))
		return
	}
	if updated.ID == "" {
		c.fail(input, "Unable to update call.")
		return
	}
	c.Calls.Merge(updated)
	c.succeed(input, "%s", success)
}

func handleSearch(_ context.Context, c *Console, cmd Command, a *args) {
	text := a.text()
	if text == "" {
		c.fail(cmd.Raw, "Provide text to search.")
		return
	}
	c.Filters.SetSearch(text)
	c.succeed(cmd.Raw, "Search updated to \"%s\".", text)
}

func handleClear(_ context.Context, c *Console, cmd Command, a *args) {
	what, ok := a.nextLower()
	if what == "search" {
		c.Filters.SetSearch("")
		c.succeed(cmd.Raw, "Search cleared.")
		return
	}
	if !ok {
		what = "(unknown)"
	}
	c.fail(cmd.Raw, "Cannot clear %s.", what)
}

func handleFilter(_ context.Context, c *Console, cmd Command, a *args) {
	if sub, _ := a.nextLower(); sub != "status" {
		c.fail(cmd.Raw, "Only status filtering is supported.")
		return
	}
	status, _ := a.nextLower()
	if !validStatusFilter(status) {
		c.fail(cmd.Raw, "Status must be one of: %s.", strings.Join(StatusFilters, ", "))
		return
	}
	c.Filters.SetStatus(status)
	c.succeed(cmd.Raw, "Status filter set to %s.", status)
}

func handleSummary(_ context.Context, c *Console, cmd Command, _ *args) {
	f := c.Filters.Get()
	search := "(none)"
	if f.Search != "" {
		search = `"` + f.Search + `"`
	}
	c.info(cmd.Raw, strings.Join([]string{
		fmt.Sprintf("Calls loaded: %d", c.Calls.Len()),
		"Search: " + search,
		"Status filter: " + f.Status,
	}, "\n"))
}

func handleShow(_ context.Context, c *Console, cmd Command, a *args) {
	target, ok := a.nextLower()
	if target == "filters" {
		c.Filters.SetShowFilters(true)
		c.succeed(cmd.Raw, "Filters opened.")
		return
	}
	if !ok {
		target = "(unknown)"
	}
	c.fail(cmd.Raw, "Unknown show target: %s.", target)
}

func (c *Console) info(input, output string) {
	c.Log.Append(input, output, KindInfo)
}

func (c *Console) succeed(input, format string, v ...any) {
	c.Log.Append(input, sprintf(format, v...), KindSuccess)
}

func (c *Console) fail(input, format string, v ...any) {
	c.Log.Append(input, sprintf(format, v...), KindError)
}

func sprintf(format string, v ...any) string {
	if len(v) == 0 {
		return format
	}
	return fmt.Sprintf(format, v...)
}

var _ CallUpdater = (*dispatchsdk.Client)(nil)

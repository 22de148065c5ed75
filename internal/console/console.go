package console

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	dispatchsdk "dispatchline/sdk/go"
)

// CallUpdater performs call assignment against the dispatch API.
type CallUpdater interface {
	AssignCall(ctx context.Context, callID, unitID string) (dispatchsdk.Call, error)
	UnassignCall(ctx context.Context, callID, unitID string) (dispatchsdk.Call, error)
}

type Options struct {
	Route   string
	Client  CallUpdater
	Filters *FilterStore
	Calls   *CallStore
	Modals  *ModalStore
	Units   *UnitStore
	Logger  logrus.FieldLogger
}

// Console interprets command lines against shared dashboard state.
type Console struct {
	Log     *Log
	Filters *FilterStore
	Calls   *CallStore
	Modals  *ModalStore
	Units   *UnitStore

	client CallUpdater
	logger logrus.FieldLogger
	guard  Guard

	mu    sync.RWMutex
	route string
}

func New(opts Options) *Console {
	c := &Console{
		Log:     NewLog(DefaultLogCapacity),
		Filters: opts.Filters,
		Calls:   opts.Calls,
		Modals:  opts.Modals,
		Units:   opts.Units,
		client:  opts.Client,
		logger:  opts.Logger,
		route:   opts.Route,
	}
	if c.Filters == nil {
		c.Filters = NewFilterStore()
	}
	if c.Calls == nil {
		c.Calls = NewCallStore()
	}
	if c.Modals == nil {
		c.Modals = NewModalStore()
	}
	if c.Units == nil {
		c.Units = NewUnitStore()
	}
	if c.route == "" {
		c.route = RouteDispatch
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}
	return c
}

func (c *Console) Route() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.route
}

func (c *Console) SetRoute(route string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.route = route
}

// Processing reports whether a command is in flight.
func (c *Console) Processing() bool {
	return c.guard.State() == StateProcessing
}

// Submit runs raw unless another command is in flight, in which case it
// returns ErrBusy and nothing is logged.
func (c *Console) Submit(ctx context.Context, raw string) error {
	if !c.guard.Enter() {
		return ErrBusy
	}
	defer c.guard.Leave()
	c.Execute(ctx, raw)
	return nil
}

// Execute tokenizes raw and dispatches it. Blank input is ignored.
func (c *Console) Execute(ctx context.Context, raw string) {
	cmd, ok := Tokenize(raw)
	if !ok {
		return
	}
	c.logger.WithField("verb", cmd.Verb).Debug("console command")
	h, ok := handlers[cmd.Verb]
	if !ok {
		c.fail(cmd.Raw, "Unknown command: %s.", cmd.Verb)
		return
	}
	h(ctx, c, cmd, &args{rest: cmd.Args})
}

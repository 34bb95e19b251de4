package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/cyclopcam/logs"

	"github.com/ayusman/mudra/internal/gesture"
)

// Runner executes a plugin request. *Executor is the production Runner.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// Result is the outcome of one bound action.
type Result struct {
	Binding  Binding
	Request  *Request
	Response *Response
	Err      error
}

// Dispatcher runs the actions bound to each emitted gesture. Actions run in
// their own goroutines so a slow plugin never holds up the frame loop.
type Dispatcher struct {
	log      logs.Log
	manager  *Manager
	runner   Runner
	bindings []Binding

	wg       sync.WaitGroup
	mu       sync.Mutex
	onResult func(Result)
}

// NewDispatcher validates bindings and returns a Dispatcher.
func NewDispatcher(log logs.Log, manager *Manager, runner Runner, bindings []Binding) (*Dispatcher, error) {
	for i, b := range bindings {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return &Dispatcher{
		log:      log,
		manager:  manager,
		runner:   runner,
		bindings: append([]Binding(nil), bindings...),
	}, nil
}

// OnResult registers fn to observe every finished action.
func (d *Dispatcher) OnResult(fn func(Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onResult = fn
}

// Bindings returns the configured bindings.
func (d *Dispatcher) Bindings() []Binding {
	return append([]Binding(nil), d.bindings...)
}

// Matching returns the bindings that apply to p, in configuration order.
func (d *Dispatcher) Matching(p gesture.Payload) []Binding {
	var out []Binding
	for _, b := range d.bindings {
		if b.Matches(p) {
			out = append(out, b)
		}
	}
	return out
}

// Send starts the actions bound to tr's payload and returns immediately.
func (d *Dispatcher) Send(ctx context.Context, tr *gesture.Transition) error {
	for _, b := range d.Matching(tr.Payload) {
		req := NewRequest(b.Action, tr, b.Params)
		d.wg.Add(1)
		go func(b Binding) {
			defer d.wg.Done()
			d.run(ctx, b, req)
		}(b)
	}
	return nil
}

// Wait blocks until every started action has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, b Binding, req *Request) {
	res := Result{Binding: b, Request: req}
	defer func() { d.report(res) }()

	p, err := d.manager.Get(b.Plugin)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", b.Plugin, err)
		d.log.Warnf("Action %s/%s for %s: %v", b.Plugin, b.Action, req.Payload, res.Err)
		return
	}
	if !p.Manifest.Supports(b.Action) {
		res.Err = fmt.Errorf("plugin %s has no action %q", b.Plugin, b.Action)
		d.log.Warnf("Action %s/%s for %s: %v", b.Plugin, b.Action, req.Payload, res.Err)
		return
	}

	resp, err := d.runner.Execute(ctx, p, req)
	res.Response = resp
	res.Err = err
	switch {
	case err != nil:
		d.log.Errorf("Action %s/%s for %s failed: %v", b.Plugin, b.Action, req.Payload, err)
	case !resp.Success:
		d.log.Warnf("Action %s/%s for %s reported: %s", b.Plugin, b.Action, req.Payload, resp.Error)
	default:
		d.log.Debugf("Action %s/%s for %s done", b.Plugin, b.Action, req.Payload)
	}
}

func (d *Dispatcher) report(res Result) {
	d.mu.Lock()
	fn := d.onResult
	d.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

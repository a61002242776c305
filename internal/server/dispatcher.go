package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/Saiid2001/login-security-landscape/internal/lease"
	"github.com/Saiid2001/login-security-landscape/internal/protocol"
)

// ErrShuttingDown is returned for requests arriving after Stop.
var ErrShuttingDown = errors.New("server is shutting down")

// leaseService is the slice of *lease.Service the dispatcher needs.
type leaseService interface {
	Acquire(ctx context.Context, experiment, site string) (*lease.Grant, error)
	AcquireBatch(ctx context.Context, experiment string, k int, site string) (*lease.BatchGrant, error)
	Release(ctx context.Context, experiment, sessionID string) error
}

type command struct {
	ctx   context.Context
	req   protocol.Request
	reply chan outcome
}

type outcome struct {
	payload any
	err     error
}

// Dispatcher funnels every decoded request through one worker goroutine.
// The worker finishes a request completely, store transaction included,
// before taking the next one, so allocation decisions never interleave.
type Dispatcher struct {
	svc  leaseService
	cmds chan command
	quit chan struct{}
	done chan struct{}
}

func NewDispatcher(svc leaseService) *Dispatcher {
	return &Dispatcher{
		svc:  svc,
		cmds: make(chan command),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Run processes commands until Stop is called. Meant to run in its own
// goroutine for the lifetime of the server.
func (d *Dispatcher) Run() {
	defer close(d.done)
	for {
		select {
		case cmd := <-d.cmds:
			payload, err := d.dispatch(cmd.ctx, cmd.req)
			cmd.reply <- outcome{payload: payload, err: err}
		case <-d.quit:
			return
		}
	}
}

// Stop rejects new submissions and waits for the worker to drain the
// in-flight request.
func (d *Dispatcher) Stop() {
	close(d.quit)
	<-d.done
}

// Submit hands a request to the worker and blocks for its reply.
func (d *Dispatcher) Submit(ctx context.Context, req protocol.Request) (any, error) {
	reply := make(chan outcome, 1)

	select {
	case d.cmds <- command{ctx: ctx, req: req, reply: reply}:
	case <-d.quit:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-reply:
		return out.payload, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dispatch pattern-matches the closed request set onto the service.
func (d *Dispatcher) dispatch(ctx context.Context, req protocol.Request) (any, error) {
	switch r := req.(type) {
	case protocol.GetSession:
		grant, err := d.svc.Acquire(ctx, r.Experiment, "")
		if err != nil {
			return nil, err
		}
		return protocol.NewSingleReply(grant), nil

	case protocol.GetSpecificSession:
		grant, err := d.svc.Acquire(ctx, r.Experiment, r.Site)
		if err != nil {
			return nil, err
		}
		return protocol.NewSingleReply(grant), nil

	case protocol.GetSessions:
		batch, err := d.svc.AcquireBatch(ctx, r.Experiment, r.K, "")
		if err != nil {
			return nil, err
		}
		return protocol.NewBatchReply(batch), nil

	case protocol.GetSpecificSessions:
		batch, err := d.svc.AcquireBatch(ctx, r.Experiment, r.K, r.Site)
		if err != nil {
			return nil, err
		}
		return protocol.NewBatchReply(batch), nil

	case protocol.UnlockSession:
		if err := d.svc.Release(ctx, r.Experiment, r.SessionID); err != nil {
			return nil, err
		}
		return protocol.NewAckReply(), nil

	default:
		return nil, fmt.Errorf("illegal request type %s", req.Type())
	}
}

package testutil

import (
	"context"
	"fmt"
	"sync"

	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/gateway"
	"github.com/flexprice/rebill/internal/types"
)

var _ gateway.Gateway = (*FakeGateway)(nil)

// FakeGateway is a scripted payment gateway for tests. Every submission is
// recorded; outcomes are dequeued from the scripted list, defaulting to a
// synchronous success when nothing is scripted.
type FakeGateway struct {
	mu       sync.Mutex
	requests []*gateway.ChargeRequest
	outcomes []GatewayOutcome
	seq      int
}

// GatewayOutcome scripts the result of one charge submission
type GatewayOutcome struct {
	Status types.PaymentStatus
	Err    error
}

// NewFakeGateway creates a new fake payment gateway
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

// SubmitCharge records the request and returns the next scripted outcome
func (g *FakeGateway) SubmitCharge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, req)
	g.seq++

	outcome := GatewayOutcome{Status: types.PaymentStatusSucceeded}
	if len(g.outcomes) > 0 {
		outcome = g.outcomes[0]
		g.outcomes = g.outcomes[1:]
	}

	if outcome.Err != nil {
		return nil, outcome.Err
	}

	return &gateway.ChargeResult{
		GatewayPaymentID: fmt.Sprintf("pi_test_%d", g.seq),
		Status:           outcome.Status,
	}, nil
}

// ScriptOutcome appends an outcome consumed by the next submission
func (g *FakeGateway) ScriptOutcome(outcome GatewayOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes = append(g.outcomes, outcome)
}

// ScriptDecline scripts a permanent card decline
func (g *FakeGateway) ScriptDecline() {
	g.ScriptOutcome(GatewayOutcome{
		Err: ierr.NewError("card declined").
			WithHint("The card was declined").
			Mark(ierr.ErrInvalidOperation),
	})
}

// ScriptUnavailable scripts a transient processor failure
func (g *FakeGateway) ScriptUnavailable() {
	g.ScriptOutcome(GatewayOutcome{
		Err: ierr.NewError("gateway timeout").
			WithHint("The payment gateway is unavailable").
			Mark(ierr.ErrGatewayUnavailable),
	})
}

// Requests returns all recorded charge requests in submission order
func (g *FakeGateway) Requests() []*gateway.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*gateway.ChargeRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

// Clear resets recorded requests and scripted outcomes
func (g *FakeGateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = nil
	g.outcomes = nil
	g.seq = 0
}

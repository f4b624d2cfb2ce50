package confirm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"decter-engine/internal/params"
)

var (
	// ErrNoPendingProposal is returned when a response arrives with no
	// proposal awaiting confirmation.
	ErrNoPendingProposal = errors.New("no pending proposal")
	// ErrUnknownProposal is returned when the response names a proposal
	// other than the pending one.
	ErrUnknownProposal = errors.New("unknown proposal")
	// ErrProposalResolved is returned when a proposal has already been
	// accepted, rejected, or auto-accepted.
	ErrProposalResolved = errors.New("proposal already resolved")
	// ErrProposalPending is returned when a new proposal is submitted
	// while another is still awaiting confirmation.
	ErrProposalPending = errors.New("another proposal is pending")
)

// Decision is the terminal outcome of a confirmation round.
type Decision string

const (
	Accepted     Decision = "accepted"
	Rejected     Decision = "rejected"
	AutoAccepted Decision = "auto_accepted"
)

// Resolution pairs a proposal with how it was decided.
type Resolution struct {
	Proposal  *params.Proposal
	Decision  Decision
	DecidedAt time.Time
}

// Channel delivers proposals and countdown reminders to the operator.
type Channel interface {
	SendProposal(p *params.Proposal, timeout time.Duration) error
	SendCountdown(p *params.Proposal, remaining time.Duration) error
}

// Config holds confirmation timing.
type Config struct {
	Timeout time.Duration // Deadline before auto-accept
	Tick    time.Duration // Countdown reminder interval
}

// Gate holds exactly one proposal at a time and resolves it exactly once:
// by operator response or by auto-accept at the deadline, whichever lands
// first.
type Gate struct {
	cfg     Config
	channel Channel
	logger  zerolog.Logger

	mu      sync.Mutex
	pending *pending

	results chan Resolution
}

type pending struct {
	proposal *params.Proposal
	resolved bool
	done     chan struct{}
}

func NewGate(cfg Config, channel Channel, logger zerolog.Logger) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Tick <= 0 || cfg.Tick > cfg.Timeout {
		cfg.Tick = 5 * time.Second
	}
	return &Gate{
		cfg:     cfg,
		channel: channel,
		logger:  logger.With().Str("component", "ConfirmGate").Logger(),
		results: make(chan Resolution, 4),
	}
}

// Results delivers resolutions to the engine loop.
func (g *Gate) Results() <-chan Resolution {
	return g.results
}

// Pending returns a copy of the proposal awaiting confirmation, nil if none.
func (g *Gate) Pending() *params.Proposal {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil || g.pending.resolved {
		return nil
	}
	cp := *g.pending.proposal
	return &cp
}

// Submit presents a proposal to the operator and starts the countdown.
func (g *Gate) Submit(p *params.Proposal) error {
	g.mu.Lock()
	if g.pending != nil && !g.pending.resolved {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProposalPending, g.pending.proposal.ID)
	}
	p.ExpiresAt = time.Now().UTC().Add(g.cfg.Timeout)
	pd := &pending{proposal: p, done: make(chan struct{})}
	g.pending = pd
	g.mu.Unlock()

	g.logger.Info().
		Str("proposal_id", p.ID).
		Str("instrument", p.InstrumentID).
		Dur("timeout", g.cfg.Timeout).
		Msg("Proposal awaiting confirmation")

	if g.channel != nil {
		if err := g.channel.SendProposal(p, g.cfg.Timeout); err != nil {
			g.logger.Warn().Err(err).Msg("Failed to deliver proposal, countdown continues")
		}
	}

	go g.countdown(pd)
	return nil
}

// Resolve applies an operator decision. Exactly one resolution wins; late
// or duplicate responses get an error and change nothing.
func (g *Gate) Resolve(proposalID string, accept bool) error {
	g.mu.Lock()
	if g.pending == nil {
		g.mu.Unlock()
		return ErrNoPendingProposal
	}
	if g.pending.proposal.ID != proposalID {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownProposal, proposalID)
	}
	if g.pending.resolved {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProposalResolved, proposalID)
	}
	g.pending.resolved = true
	pd := g.pending
	g.mu.Unlock()

	close(pd.done)

	decision := Rejected
	if accept {
		decision = Accepted
	}
	g.logger.Info().
		Str("proposal_id", proposalID).
		Str("decision", string(decision)).
		Msg("Proposal resolved by operator")

	g.results <- Resolution{Proposal: pd.proposal, Decision: decision, DecidedAt: time.Now().UTC()}
	return nil
}

// countdown sends periodic reminders and auto-accepts at the deadline.
func (g *Gate) countdown(pd *pending) {
	deadline := time.NewTimer(g.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(g.cfg.Tick)
	defer ticker.Stop()

	expiry := time.Now().Add(g.cfg.Timeout)
	for {
		select {
		case <-pd.done:
			return
		case <-ticker.C:
			remaining := time.Until(expiry)
			if remaining <= 0 {
				continue
			}
			if g.channel != nil {
				if err := g.channel.SendCountdown(pd.proposal, remaining.Round(time.Second)); err != nil {
					g.logger.Debug().Err(err).Msg("Countdown reminder failed")
				}
			}
		case <-deadline.C:
			g.mu.Lock()
			if pd.resolved {
				g.mu.Unlock()
				return
			}
			pd.resolved = true
			g.mu.Unlock()

			g.logger.Info().
				Str("proposal_id", pd.proposal.ID).
				Msg("Confirmation deadline passed, auto-accepting proposal")
			g.results <- Resolution{Proposal: pd.proposal, Decision: AutoAccepted, DecidedAt: time.Now().UTC()}
			return
		}
	}
}

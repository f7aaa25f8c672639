package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fastprodman/casinobot/internal/infra/metrics"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/ledger"
	"github.com/fastprodman/casinobot/internal/services/outcome"
	"github.com/fastprodman/casinobot/internal/services/settlement"
	"go.uber.org/zap"
)

// Settler is the part of the settlement engine the sessions need.
type Settler interface {
	Settle(ctx context.Context, req settlement.Request) (settlement.Result, error)
	Bounds() money.Bounds
}

// AccountReader reads the current balance for the stake pre-check.
type AccountReader interface {
	GetOrCreateAccount(ctx context.Context, accountID int64) (ledger.Account, error)
}

type entry struct {
	// run serializes Handle calls of one account, settlement included.
	run sync.Mutex

	mu      sync.Mutex
	s       Session
	removed bool
}

// Manager owns every account's session.
type Manager struct {
	settler     Settler
	accounts    AccountReader
	idleTimeout time.Duration
	log         *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[int64]*entry
}

func NewManager(settler Settler, accounts AccountReader, idleTimeout time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		settler:     settler,
		accounts:    accounts,
		idleTimeout: idleTimeout,
		log:         log.Named("session"),
		now:         time.Now,
		sessions:    make(map[int64]*entry),
	}
}

// acquire returns the account's entry with its run lock held.
func (m *Manager) acquire(accountID int64) *entry {
	for {
		m.mu.Lock()

		e, ok := m.sessions[accountID]
		if !ok {
			e = &entry{s: idle(m.now())}
			m.sessions[accountID] = e
		}

		m.mu.Unlock()

		e.run.Lock()

		e.mu.Lock()
		removed := e.removed
		e.mu.Unlock()

		if !removed {
			return e
		}

		e.run.Unlock()
	}
}

func (m *Manager) expired(s Session) bool {
	return m.idleTimeout > 0 && m.now().Sub(s.UpdatedAt) > m.idleTimeout
}

// Snapshot returns the account's session without changing it.
func (m *Manager) Snapshot(accountID int64) Session {
	m.mu.Lock()
	e, ok := m.sessions[accountID]
	m.mu.Unlock()

	if !ok {
		return idle(m.now())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s.State != StateSettling && m.expired(e.s) {
		return idle(m.now())
	}

	return e.s
}

func (m *Manager) set(e *entry, accountID int64, s Session) {
	s.UpdatedAt = m.now()

	e.mu.Lock()
	from := e.s.State
	e.s = s
	e.mu.Unlock()

	if from != s.State {
		metrics.SessionTransitions.WithLabelValues(string(from), string(s.State)).Inc()
		m.log.Debug("session transition",
			zap.Int64("account_id", accountID),
			zap.String("from", string(from)),
			zap.String("to", string(s.State)),
		)
	}
}

// Handle applies one action. The returned Reply always reflects the state
// after the action, also when an error is returned.
func (m *Manager) Handle(ctx context.Context, accountID int64, a Action) (Reply, error) {
	e := m.acquire(accountID)
	defer e.run.Unlock()

	e.mu.Lock()
	cur := e.s
	e.mu.Unlock()

	if cur.State != StateIdle && m.expired(cur) {
		m.set(e, accountID, idle(m.now()))
		cur = idle(m.now())
	}

	if isBack(a) {
		m.set(e, accountID, idle(m.now()))
		return mainMenu(), nil
	}

	switch cur.State {
	case StateIdle:
		return m.onIdle(e, accountID, a)
	case StateChoosingGame:
		return m.onChoosingGame(e, accountID, a)
	case StateChoosingVariant:
		return m.onChoosingVariant(e, accountID, cur, a)
	case StateAwaitingDuelDirection:
		return m.onDuelDirection(e, accountID, cur, a)
	case StateAwaitingStake:
		return m.onStake(ctx, e, accountID, cur, a)
	default:
		m.set(e, accountID, idle(m.now()))
		return mainMenu(), fmt.Errorf("%w: session in %s", ErrUnexpectedAction, cur.State)
	}
}

func mainMenu() Reply {
	return Reply{State: StateIdle, Prompt: "Main menu", Options: []string{SelPlay}}
}

func (m *Manager) reset(e *entry, accountID int64, err error) (Reply, error) {
	m.set(e, accountID, idle(m.now()))
	return mainMenu(), err
}

func (m *Manager) onIdle(e *entry, accountID int64, a Action) (Reply, error) {
	if a.Name == SelPlay && (a.Kind == ActionCommand || a.Kind == ActionSelect) {
		m.set(e, accountID, Session{State: StateChoosingGame})
		return Reply{State: StateChoosingGame, Prompt: "Choose a game", Options: gameOptions()}, nil
	}

	if a.Kind == ActionCommand && a.Name == "start" {
		return mainMenu(), nil
	}

	return mainMenu(), fmt.Errorf("%w: %s %q while idle", ErrUnexpectedAction, a.Kind, a.Name)
}

func (m *Manager) onChoosingGame(e *entry, accountID int64, a Action) (Reply, error) {
	kind, ok := gameKindFor(a.Name)
	if a.Kind != ActionSelect || !ok {
		return m.reset(e, accountID, fmt.Errorf("%w: %q is not a game", ErrInvalidSelection, a.Name))
	}

	m.set(e, accountID, Session{State: StateChoosingVariant, Kind: kind})

	return Reply{State: StateChoosingVariant, Prompt: "Choose an outcome", Options: variantOptions(kind)}, nil
}

func (m *Manager) onChoosingVariant(e *entry, accountID int64, cur Session, a Action) (Reply, error) {
	if a.Kind != ActionSelect {
		return m.reset(e, accountID, fmt.Errorf("%w: expected a selection", ErrInvalidSelection))
	}

	if cur.Kind == outcome.KindDice && a.Name == SelDiceDuel {
		m.set(e, accountID, Session{State: StateAwaitingDuelDirection, Kind: cur.Kind})
		return Reply{State: StateAwaitingDuelDirection, Prompt: "Will your roll be higher or lower than the house?", Options: duelOptions()}, nil
	}

	g, err := outcome.ParseGame(a.Name)
	if err != nil || g.IsDuel() || g.Kind() != cur.Kind {
		return m.reset(e, accountID, fmt.Errorf("%w: %q is not a %s outcome", ErrInvalidSelection, a.Name, cur.Kind))
	}

	return m.awaitStake(e, accountID, Session{State: StateAwaitingStake, Kind: cur.Kind, Game: g})
}

func (m *Manager) onDuelDirection(e *entry, accountID int64, cur Session, a Action) (Reply, error) {
	g, err := outcome.ParseGame(a.Name)
	if a.Kind != ActionSelect || err != nil || !g.IsDuel() {
		return m.reset(e, accountID, fmt.Errorf("%w: %q is not a duel direction", ErrInvalidSelection, a.Name))
	}

	return m.awaitStake(e, accountID, Session{State: StateAwaitingStake, Kind: cur.Kind, Game: g, IsDuel: true})
}

func (m *Manager) awaitStake(e *entry, accountID int64, s Session) (Reply, error) {
	m.set(e, accountID, s)

	return Reply{State: StateAwaitingStake, Prompt: m.stakePrompt(s.Game), Options: []string{SelBack}}, nil
}

func (m *Manager) stakePrompt(g outcome.Game) string {
	b := m.settler.Bounds()
	return fmt.Sprintf("%s %s: enter a stake from %s to %s", g.Emoji(), g.Title(), b.Min, b.Max)
}

func (m *Manager) onStake(ctx context.Context, e *entry, accountID int64, cur Session, a Action) (Reply, error) {
	retry := Reply{State: StateAwaitingStake, Prompt: m.stakePrompt(cur.Game), Options: []string{SelBack}}

	if a.Kind != ActionText {
		return retry, fmt.Errorf("%w: expected a stake amount", money.ErrInvalidAmount)
	}

	stake, err := money.Parse(a.Text)
	if err != nil {
		return retry, err
	}

	err = m.settler.Bounds().Check(stake)
	if err != nil {
		return retry, err
	}

	acc, err := m.accounts.GetOrCreateAccount(ctx, accountID)
	if err != nil {
		return m.reset(e, accountID, fmt.Errorf("read balance: %w", err))
	}

	if acc.BalanceMinor < stake {
		reply, err := m.reset(e, accountID, fmt.Errorf("%w: balance %s, stake %s", ledger.ErrInsufficientFunds, acc.BalanceMinor, stake))
		reply.Balance = &acc.BalanceMinor

		return reply, err
	}

	cur.Stake = stake
	cur.State = StateSettling
	m.set(e, accountID, cur)

	res, err := m.settler.Settle(ctx, settlement.Request{
		AccountID: accountID,
		Stake:     stake,
		Game:      cur.Game,
		IsDuel:    cur.IsDuel,
	})

	m.set(e, accountID, idle(m.now()))

	if err != nil {
		if !errors.Is(err, ledger.ErrInsufficientFunds) && !errors.Is(err, settlement.ErrDrawUnavailable) {
			m.log.Error("settlement failed", zap.Int64("account_id", accountID), zap.Error(err))
		}

		return mainMenu(), fmt.Errorf("settle: %w", err)
	}

	reply := mainMenu()
	reply.Prompt = res.Description
	reply.Settlement = &res
	reply.Balance = &res.Balance

	return reply, nil
}

// Sweep drops sessions untouched for longer than the idle timeout. Busy
// sessions are skipped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for id, e := range m.sessions {
		if !e.run.TryLock() {
			continue
		}

		e.mu.Lock()
		if m.expired(e.s) {
			e.removed = true
			delete(m.sessions, id)
			n++
		}
		e.mu.Unlock()

		e.run.Unlock()
	}

	return n
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug("expired sessions swept", zap.Int("count", n))
			}
		}
	}
}

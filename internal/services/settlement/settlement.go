// Package settlement runs one wager from stake debit to recorded outcome.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/casinobot/internal/broadcast"
	"github.com/fastprodman/casinobot/internal/infra/metrics"
	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/ledger"
	"github.com/fastprodman/casinobot/internal/services/outcome"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recordTimeout bounds ledger writes that must finish even when the caller
// has gone away: the stake refund and the outcome of a drawn wager.
const recordTimeout = 10 * time.Second

// ErrDrawUnavailable means the wager could not be announced or drawn. The
// stake has been refunded and the wager may be retried.
var ErrDrawUnavailable = errors.New("draw unavailable, stake refunded")

type Request struct {
	AccountID int64
	Stake     money.Minor
	Game      outcome.Game
	IsDuel    bool
}

type Result struct {
	SettlementID string       `json:"settlementId"`
	AccountID    int64        `json:"accountId"`
	Game         outcome.Game `json:"game"`
	Draws        []int        `json:"draws"`
	Won          bool         `json:"won"`
	Description  string       `json:"description"`
	Stake        money.Minor  `json:"stake"`
	Payout       money.Minor  `json:"payout"`
	Balance      money.Minor  `json:"balance"`
}

type Engine struct {
	store   ledger.Store
	bc      broadcast.Broadcaster
	payouts outcome.Payouts
	bounds  money.Bounds
	log     *zap.Logger
	newID   func() string
}

func New(store ledger.Store, bc broadcast.Broadcaster, payouts outcome.Payouts, bounds money.Bounds, log *zap.Logger) *Engine {
	return &Engine{
		store:   store,
		bc:      bc,
		payouts: payouts,
		bounds:  bounds,
		log:     log.Named("settlement"),
		newID:   uuid.NewString,
	}
}

// Bounds returns the accepted stake range.
func (e *Engine) Bounds() money.Bounds {
	return e.bounds
}

// Settle debits the stake, draws, resolves and records the outcome.
//
// Money invariants: the stake is debited at most once, and if no draw is
// produced it is credited back before Settle returns. If that refund itself
// fails, both errors are returned joined. Once a draw exists the outcome is
// recorded even if ctx is cancelled.
func (e *Engine) Settle(ctx context.Context, req Request) (Result, error) {
	err := e.validate(req)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	id := e.newID()
	log := e.log.With(
		zap.String("settlement_id", id),
		zap.Int64("account_id", req.AccountID),
		zap.String("game", string(req.Game)),
	)

	_, err = e.store.AdjustBalance(ctx, ledger.Entry{
		EntryID:     "stake:" + id,
		AccountID:   req.AccountID,
		Kind:        ledger.KindStake,
		AmountMinor: -req.Stake,
	})
	if err != nil {
		return Result{}, fmt.Errorf("debit stake: %w", err)
	}

	draws, err := e.bc.Announce(ctx, broadcast.Announcement{
		SettlementID: id,
		AccountID:    req.AccountID,
		Game:         req.Game,
		Emoji:        req.Game.Emoji(),
		Title:        req.Game.Title(),
		Stake:        req.Stake,
		Coefficient:  e.payouts.Coefficient(req.Game),
		PotentialWin: e.payouts.Win(req.Game, req.Stake),
	})
	if err != nil {
		return Result{}, e.refund(ctx, log, id, req, err)
	}

	// the draw is public now, so the caller can no longer abandon the wager
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	out, err := outcome.Resolve(req.Game, draws...)
	if err != nil {
		return Result{}, e.refund(ctx, log, id, req, err)
	}

	var payout money.Minor
	if out.Won {
		payout = e.payouts.Win(req.Game, req.Stake)
	}

	balance, err := e.store.CompleteBet(ctx, ledger.Entry{
		EntryID:     "payout:" + id,
		AccountID:   req.AccountID,
		Kind:        ledger.KindPayout,
		AmountMinor: payout,
	}, out.Won)
	if err != nil {
		log.Error("outcome drawn but not recorded",
			zap.Bool("won", out.Won),
			zap.Stringer("payout", payout),
			zap.Ints("draws", draws),
			zap.Error(err),
		)

		return Result{}, fmt.Errorf("record outcome: %w", err)
	}

	res := Result{
		SettlementID: id,
		AccountID:    req.AccountID,
		Game:         req.Game,
		Draws:        draws,
		Won:          out.Won,
		Description:  out.Description,
		Stake:        req.Stake,
		Payout:       payout,
		Balance:      balance,
	}

	err = e.bc.PublishResult(ctx, broadcast.ResultEvent{
		SettlementID: id,
		AccountID:    req.AccountID,
		Game:         req.Game,
		Draws:        draws,
		Won:          out.Won,
		Description:  out.Description,
		Stake:        req.Stake,
		Payout:       payout,
	})
	if err != nil {
		metrics.BroadcastFailures.WithLabelValues("result").Inc()
		log.Warn("result broadcast failed", zap.Error(err))
	}

	metrics.Settlements.WithLabelValues(string(req.Game), resultLabel(out.Won)).Inc()
	metrics.SettlementDuration.WithLabelValues(string(req.Game)).Observe(time.Since(start).Seconds())

	log.Info("wager settled",
		zap.Bool("won", out.Won),
		zap.Ints("draws", draws),
		zap.Stringer("stake", req.Stake),
		zap.Stringer("payout", payout),
		zap.Stringer("balance", balance),
	)

	return res, nil
}

func (e *Engine) validate(req Request) error {
	if !req.Game.Valid() {
		return fmt.Errorf("%w: %q", outcome.ErrInvalidGame, req.Game)
	}

	if req.IsDuel != req.Game.IsDuel() {
		return fmt.Errorf("%w: duel flag does not match %s", outcome.ErrInvalidGame, req.Game)
	}

	err := e.bounds.Check(req.Stake)
	if err != nil {
		return fmt.Errorf("stake: %w", err)
	}

	return nil
}

func (e *Engine) refund(ctx context.Context, log *zap.Logger, id string, req Request, cause error) error {
	metrics.BroadcastFailures.WithLabelValues("announce").Inc()

	// the caller's context may be what failed the draw
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	_, err := e.store.AdjustBalance(refundCtx, ledger.Entry{
		EntryID:     "stake_refund:" + id,
		AccountID:   req.AccountID,
		Kind:        ledger.KindStakeRefund,
		AmountMinor: req.Stake,
	})
	if err != nil {
		metrics.StakeRefunds.WithLabelValues("failed").Inc()
		log.Error("stake refund failed after draw failure",
			zap.Stringer("stake", req.Stake),
			zap.NamedError("draw_error", cause),
			zap.Error(err),
		)

		return errors.Join(
			fmt.Errorf("%w: %w", ErrDrawUnavailable, cause),
			fmt.Errorf("refund stake: %w", err),
		)
	}

	metrics.StakeRefunds.WithLabelValues("ok").Inc()
	log.Warn("draw failed, stake refunded", zap.Error(cause))

	return fmt.Errorf("%w: %w", ErrDrawUnavailable, cause)
}

func resultLabel(won bool) string {
	if won {
		return "win"
	}

	return "loss"
}

// Package session drives the per-account bet conversation: game choice,
// outcome choice, stake entry and settlement.
package session

import (
	"errors"
	"time"

	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/outcome"
	"github.com/fastprodman/casinobot/internal/services/settlement"
)

type State string

const (
	StateIdle                  State = "idle"
	StateChoosingGame          State = "choosing_game"
	StateChoosingVariant       State = "choosing_variant"
	StateAwaitingDuelDirection State = "awaiting_duel_direction"
	StateAwaitingStake         State = "awaiting_stake"
	StateSettling              State = "settling"
)

var (
	ErrUnexpectedAction = errors.New("unexpected action")
	ErrInvalidSelection = errors.New("invalid selection")
)

type ActionKind string

const (
	ActionCommand ActionKind = "command"
	ActionSelect  ActionKind = "select"
	ActionText    ActionKind = "text"
)

// Action is one inbound event from the transport.
type Action struct {
	Kind ActionKind `json:"kind"`
	Name string     `json:"name,omitempty"`
	Text string     `json:"text,omitempty"`
}

// Selection names understood by the state machine.
const (
	SelPlay       = "play"
	SelBack       = "back"
	SelCancel     = "cancel"
	SelDice       = "game_dice"
	SelFootball   = "game_football"
	SelBasketball = "game_basketball"
	SelDiceDuel   = "dice_duel"
)

// Session is the conversation state of one account.
type Session struct {
	State     State        `json:"state"`
	Kind      outcome.Kind `json:"kind,omitempty"`
	Game      outcome.Game `json:"game,omitempty"`
	IsDuel    bool         `json:"isDuel,omitempty"`
	Stake     money.Minor  `json:"stake,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Reply is what the transport renders after an action.
type Reply struct {
	State      State              `json:"state"`
	Prompt     string             `json:"prompt"`
	Options    []string           `json:"options,omitempty"`
	Settlement *settlement.Result `json:"settlement,omitempty"`

	// Balance is set when the action read or changed the balance.
	Balance *money.Minor `json:"balance,omitempty"`
}

func idle(now time.Time) Session {
	return Session{State: StateIdle, UpdatedAt: now}
}

func isBack(a Action) bool {
	if a.Kind != ActionSelect && a.Kind != ActionCommand {
		return false
	}

	return a.Name == SelBack || a.Name == SelCancel
}

func gameKindFor(sel string) (outcome.Kind, bool) {
	switch sel {
	case SelDice:
		return outcome.KindDice, true
	case SelFootball:
		return outcome.KindFootball, true
	case SelBasketball:
		return outcome.KindBasketball, true
	default:
		return "", false
	}
}

func variantOptions(k outcome.Kind) []string {
	var opts []string

	for _, g := range outcome.GamesOf(k) {
		opts = append(opts, string(g))
	}

	if k == outcome.KindDice {
		opts = append(opts, SelDiceDuel)
	}

	return append(opts, SelBack)
}

func duelOptions() []string {
	return []string{string(outcome.DuelOver), string(outcome.DuelUnder), SelBack}
}

func gameOptions() []string {
	return []string{SelDice, SelFootball, SelBasketball, SelBack}
}

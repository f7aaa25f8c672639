package outcome

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGame = errors.New("invalid game")
	ErrInvalidDraw = errors.New("invalid draw")
)

// Kind groups games by the animated throw they use.
type Kind string

const (
	KindDice       Kind = "dice"
	KindFootball   Kind = "football"
	KindBasketball Kind = "basketball"
)

// Game is a concrete outcome a stake can be placed on.
type Game string

const (
	DiceOver       Game = "dice_over"
	DiceUnder      Game = "dice_under"
	DiceEven       Game = "dice_even"
	DiceOdd        Game = "dice_odd"
	DuelOver       Game = "duel_over"
	DuelUnder      Game = "duel_under"
	FootballGoal   Game = "football_goal"
	FootballMiss   Game = "football_miss"
	BasketballGoal Game = "basketball_goal"
	BasketballMiss Game = "basketball_miss"
)

// All lists every game in menu order.
var All = []Game{
	DiceOver, DiceUnder, DiceEven, DiceOdd, DuelOver, DuelUnder,
	FootballGoal, FootballMiss, BasketballGoal, BasketballMiss,
}

// ParseGame maps a wire name to a Game.
func ParseGame(s string) (Game, error) {
	g := Game(s)
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGame, s)
	}

	return g, nil
}

func (g Game) Valid() bool {
	switch g {
	case DiceOver, DiceUnder, DiceEven, DiceOdd, DuelOver, DuelUnder,
		FootballGoal, FootballMiss, BasketballGoal, BasketballMiss:
		return true
	default:
		return false
	}
}

func (g Game) Kind() Kind {
	switch g {
	case DiceOver, DiceUnder, DiceEven, DiceOdd, DuelOver, DuelUnder:
		return KindDice
	case FootballGoal, FootballMiss:
		return KindFootball
	case BasketballGoal, BasketballMiss:
		return KindBasketball
	default:
		return ""
	}
}

// IsDuel reports whether g is played player-vs-house with two draws.
func (g Game) IsDuel() bool {
	return g == DuelOver || g == DuelUnder
}

// Draws is the number of die values g needs.
func (g Game) Draws() int {
	if g.IsDuel() {
		return 2
	}

	return 1
}

// PayoutKey is the key under which g's coefficient is configured.
// Both duel directions share one coefficient.
func (g Game) PayoutKey() string {
	if g.IsDuel() {
		return "duel"
	}

	return string(g)
}

func (g Game) Emoji() string {
	switch g.Kind() {
	case KindFootball:
		return "⚽"
	case KindBasketball:
		return "🏀"
	default:
		return "🎲"
	}
}

func (g Game) Title() string {
	switch g {
	case DiceOver:
		return "Dice: over 3"
	case DiceUnder:
		return "Dice: under 4"
	case DiceEven:
		return "Dice: even"
	case DiceOdd:
		return "Dice: odd"
	case DuelOver:
		return "Dice duel: higher than house"
	case DuelUnder:
		return "Dice duel: lower than house"
	case FootballGoal:
		return "Football: goal"
	case FootballMiss:
		return "Football: miss"
	case BasketballGoal:
		return "Basketball: goal"
	case BasketballMiss:
		return "Basketball: miss"
	default:
		return string(g)
	}
}

// GamesOf returns the non-duel games of kind k.
func GamesOf(k Kind) []Game {
	var out []Game

	for _, g := range All {
		if g.Kind() == k && !g.IsDuel() {
			out = append(out, g)
		}
	}

	return out
}

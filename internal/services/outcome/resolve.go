package outcome

import "fmt"

// Outcome is the verdict for one settled wager.
type Outcome struct {
	Won         bool
	Description string
}

// Resolve decides a wager from its draws. Draws are die values in 1..6;
// duel games take the player's value first and the house's second.
func Resolve(g Game, draws ...int) (Outcome, error) {
	if !g.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidGame, g)
	}

	if len(draws) != g.Draws() {
		return Outcome{}, fmt.Errorf("%w: %s needs %d draws, got %d", ErrInvalidDraw, g, g.Draws(), len(draws))
	}

	for _, d := range draws {
		if d < 1 || d > 6 {
			return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidDraw, d)
		}
	}

	d := draws[0]

	switch g {
	case DiceOver:
		return verdict(d >= 4, "rolled %d", d), nil
	case DiceUnder:
		return verdict(d <= 3, "rolled %d", d), nil
	case DiceEven:
		return verdict(d%2 == 0, "rolled %d", d), nil
	case DiceOdd:
		return verdict(d%2 == 1, "rolled %d", d), nil
	case FootballGoal:
		return verdict(footballGoal(d), "%s", footballText(d)), nil
	case FootballMiss:
		return verdict(!footballGoal(d), "%s", footballText(d)), nil
	case BasketballGoal:
		return verdict(basketballGoal(d), "%s", basketballText(d)), nil
	case BasketballMiss:
		return verdict(!basketballGoal(d), "%s", basketballText(d)), nil
	case DuelOver:
		// ties lose
		return verdict(draws[0] > draws[1], "player %d vs house %d", draws[0], draws[1]), nil
	case DuelUnder:
		return verdict(draws[0] < draws[1], "player %d vs house %d", draws[0], draws[1]), nil
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidGame, g)
	}
}

func verdict(won bool, format string, args ...any) Outcome {
	return Outcome{Won: won, Description: fmt.Sprintf(format, args...)}
}

func footballGoal(d int) bool { return d >= 3 && d <= 5 }

func basketballGoal(d int) bool { return d == 4 || d == 5 }

func footballText(d int) string {
	if footballGoal(d) {
		return "goal"
	}

	return "miss"
}

func basketballText(d int) string {
	if basketballGoal(d) {
		return "score"
	}

	return "miss"
}

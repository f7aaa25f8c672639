// Package broadcast publishes wagers, their results and account
// notifications, and produces the draw for each published wager.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/fastprodman/casinobot/internal/money"
	"github.com/fastprodman/casinobot/internal/services/outcome"
	"github.com/shopspring/decimal"
)

var ErrPublish = errors.New("publish failed")

// Publisher delivers a payload to topic. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

type Announcement struct {
	SettlementID string          `json:"settlementId"`
	AccountID    int64           `json:"accountId"`
	Game         outcome.Game    `json:"game"`
	Emoji        string          `json:"emoji"`
	Title        string          `json:"title"`
	Stake        money.Minor     `json:"stake"`
	Coefficient  decimal.Decimal `json:"coefficient"`
	PotentialWin money.Minor     `json:"potentialWin"`
}

type ResultEvent struct {
	SettlementID string       `json:"settlementId"`
	AccountID    int64        `json:"accountId"`
	Game         outcome.Game `json:"game"`
	Draws        []int        `json:"draws"`
	Won          bool         `json:"won"`
	Description  string       `json:"description"`
	Stake        money.Minor  `json:"stake"`
	Payout       money.Minor  `json:"payout"`
}

type notification struct {
	AccountID int64  `json:"accountId"`
	Text      string `json:"text"`
}

// Broadcaster announces a wager and returns its draws. No draw is produced
// for a wager whose announcement failed.
type Broadcaster interface {
	Announce(ctx context.Context, a Announcement) ([]int, error)
	PublishResult(ctx context.Context, r ResultEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, accountID int64, text string) error
}

type Topics struct {
	Wagers        string `env:"TOPIC_WAGERS" default:"casinobot.wagers"`
	Results       string `env:"TOPIC_RESULTS" default:"casinobot.results"`
	Notifications string `env:"TOPIC_NOTIFICATIONS" default:"casinobot.notifications"`
}

var (
	_ Broadcaster = (*Channel)(nil)
	_ Notifier    = (*Channel)(nil)
)

// Channel is the public wager channel backed by a Publisher.
type Channel struct {
	pub    Publisher
	roller outcome.Roller
	topics Topics
}

func NewChannel(pub Publisher, roller outcome.Roller, topics Topics) *Channel {
	return &Channel{pub: pub, roller: roller, topics: topics}
}

func (c *Channel) Announce(ctx context.Context, a Announcement) ([]int, error) {
	err := c.publish(ctx, c.topics.Wagers, a.SettlementID, a)
	if err != nil {
		return nil, fmt.Errorf("announce wager: %w", err)
	}

	draws := make([]int, a.Game.Draws())

	for i := range draws {
		draws[i], err = c.roller.Roll(ctx)
		if err != nil {
			return nil, fmt.Errorf("draw: %w", err)
		}
	}

	return draws, nil
}

func (c *Channel) PublishResult(ctx context.Context, r ResultEvent) error {
	err := c.publish(ctx, c.topics.Results, r.SettlementID, r)
	if err != nil {
		return fmt.Errorf("publish result: %w", err)
	}

	return nil
}

func (c *Channel) Notify(ctx context.Context, accountID int64, text string) error {
	key := strconv.FormatInt(accountID, 10)

	err := c.publish(ctx, c.topics.Notifications, key, notification{AccountID: accountID, Text: text})
	if err != nil {
		return fmt.Errorf("notify account %d: %w", accountID, err)
	}

	return nil
}

func (c *Channel) publish(ctx context.Context, topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}

	err = c.pub.Publish(ctx, topic, key, payload)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublish, topic, err)
	}

	return nil
}

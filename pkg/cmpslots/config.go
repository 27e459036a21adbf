package cmpslots

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"solperf/internal/pkg/flags"
	"solperf/internal/pkg/geyser"
	"solperf/internal/pkg/utils"
	"solperf/pkg/cmpslots/feeds/slots"
)

// Endpoint describes one upstream. Exactly one of GRPCURL and WebsocketURL
// is set.
type Endpoint struct {
	Name         string
	GRPCURL      string
	XToken       string
	WebsocketURL string
}

// Config is a validated race configuration.
type Config struct {
	Endpoints      []Endpoint
	Commitment     geyser.Commitment
	Milestones     utils.HashSet[slots.Milestone]
	ChannelSize    int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	Policy         ReconnectPolicy
	Retention      time.Duration
}

// ConfigFromCLI reads and validates the slotcompare flags.
func ConfigFromCLI(c *cli.Context) (Config, error) {
	commitment, err := geyser.ParseCommitment(c.String(flags.Commitment.Name))
	if err != nil {
		return Config{}, fmt.Errorf("--%s: %w", flags.Commitment.Name, err)
	}

	milestones, err := slots.ParseMilestones(c.String(flags.WSMilestone.Name))
	if err != nil {
		return Config{}, fmt.Errorf("--%s: %w", flags.WSMilestone.Name, err)
	}

	policy, err := ParseReconnectPolicy(c.String(flags.Backoff.Name), c.Int(flags.AlertAfter.Name))
	if err != nil {
		return Config{}, fmt.Errorf("--%s: %w", flags.Backoff.Name, err)
	}

	cfg := Config{
		Endpoints: []Endpoint{
			{
				Name:         c.String(flags.Name0.Name),
				GRPCURL:      c.String(flags.GRPCURL0.Name),
				XToken:       c.String(flags.XToken0.Name),
				WebsocketURL: c.String(flags.WebsocketURL0.Name),
			},
			{
				Name:         c.String(flags.Name1.Name),
				GRPCURL:      c.String(flags.GRPCURL1.Name),
				XToken:       c.String(flags.XToken1.Name),
				WebsocketURL: c.String(flags.WebsocketURL1.Name),
			},
		},
		Commitment:     commitment,
		Milestones:     milestones,
		ChannelSize:    c.Int(flags.ChannelSize.Name),
		ConnectTimeout: c.Duration(flags.ConnectTimeout.Name),
		IdleTimeout:    c.Duration(flags.IdleTimeout.Name),
		Policy:         policy,
		Retention:      c.Duration(flags.Retention.Name),
	}

	if c.Int(flags.AlertAfter.Name) < 0 {
		return Config{}, fmt.Errorf("--%s must not be negative", flags.AlertAfter.Name)
	}

	return cfg, cfg.Validate()
}

// Validate checks that every endpoint is usable.
func (c Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("no endpoints configured")
	}

	names := utils.NewHashSet[string]()
	var grpcCount, wsCount int
	for i, e := range c.Endpoints {
		if e.Name == "" {
			return fmt.Errorf("endpoint %d: name is required", i)
		}
		if names.Contains(e.Name) {
			return fmt.Errorf("endpoint %d: name %q is used twice", i, e.Name)
		}
		names.Add(e.Name)

		switch {
		case e.GRPCURL != "" && e.WebsocketURL != "":
			return fmt.Errorf("endpoint %d (%s): set either a gRPC url or a websocket url, not both", i, e.Name)
		case e.GRPCURL != "":
			grpcCount++
		case e.WebsocketURL != "":
			wsCount++
		default:
			return fmt.Errorf("endpoint %d (%s): a gRPC url or a websocket url is required", i, e.Name)
		}
	}

	if c.ChannelSize <= 0 {
		return fmt.Errorf("channel size must be positive, got %d", c.ChannelSize)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", c.IdleTimeout)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %s", c.Retention)
	}
	if c.Policy.NewBackOff == nil {
		return errors.New("reconnect policy is not set")
	}

	if grpcCount > 0 && wsCount > 0 && !c.Milestones.Contains(slots.MilestoneSlot) {
		log.Warnf("gRPC and websocket keys only match with --%s %s, no slot will be raced",
			flags.WSMilestone.Name, slots.MilestoneSlot)
	}
	return nil
}

// Sources builds one source per endpoint.
func (c Config) Sources() []Source {
	sources := make([]Source, 0, len(c.Endpoints))
	for _, e := range c.Endpoints {
		if e.GRPCURL != "" {
			sources = append(sources, slots.NewGeyserGRPC(e.Name, e.GRPCURL, e.XToken, c.Commitment, c.ConnectTimeout, c.IdleTimeout))
			continue
		}
		sources = append(sources, slots.NewRPCWS(e.Name, e.WebsocketURL, c.Milestones, c.ConnectTimeout, c.IdleTimeout))
	}
	return sources
}

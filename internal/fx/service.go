// Package fx provides currency conversion for display amounts, with tiered
// provider fallback and a fixed last-resort rate.
package fx

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Provider fetches a base→quote exchange rate.
type Provider interface {
	GetRate(ctx context.Context, base, quote string) (float64, error)
}

// Rate is a resolved exchange rate plus where it came from. Degraded marks
// the fixed default, so callers can tell the operator the converted amounts
// are approximate.
type Rate struct {
	Value    float64
	Source   string
	Degraded bool
}

// Convert applies the rate to an amount in the base currency.
func (r Rate) Convert(amount float64) float64 {
	return amount * r.Value
}

// Service resolves exchange rates with a 3-tier fallback:
// 1. the primary provider (exchangerate-api.com)
// 2. the secondary provider (frankfurter.app)
// 3. a fixed default rate from configuration
type Service struct {
	primary     Provider
	secondary   Provider
	base        string
	quote       string
	defaultRate float64
	log         zerolog.Logger
}

// NewService creates a conversion service for one currency pair.
func NewService(primary, secondary Provider, base, quote string, defaultRate float64, log zerolog.Logger) *Service {
	return &Service{
		primary:     primary,
		secondary:   secondary,
		base:        base,
		quote:       quote,
		defaultRate: defaultRate,
		log:         log.With().Str("service", "fx").Logger(),
	}
}

// Pair returns the configured base and quote currencies.
func (s *Service) Pair() (string, string) {
	return s.base, s.quote
}

// Rate resolves the pair's rate through the fallback tiers. It fails only
// when both providers are down and no fixed default is configured; that is
// the one condition serious enough to abort a whole run, since no
// human-readable amount can be rendered without a rate.
func (s *Service) Rate(ctx context.Context) (Rate, error) {
	if s.base == s.quote {
		return Rate{Value: 1.0, Source: "identity"}, nil
	}

	if s.primary != nil {
		rate, err := s.primary.GetRate(ctx, s.base, s.quote)
		if err == nil && rate > 0 {
			return Rate{Value: rate, Source: "exchangerate-api"}, nil
		}
		s.log.Warn().Err(err).Msg("Primary FX provider failed, trying secondary")
	}

	if s.secondary != nil {
		rate, err := s.secondary.GetRate(ctx, s.base, s.quote)
		if err == nil && rate > 0 {
			return Rate{Value: rate, Source: "frankfurter"}, nil
		}
		s.log.Warn().Err(err).Msg("Secondary FX provider failed, falling back to fixed rate")
	}

	if s.defaultRate > 0 {
		s.log.Warn().
			Float64("rate", s.defaultRate).
			Str("pair", s.base+":"+s.quote).
			Msg("Using fixed default FX rate, converted amounts are approximate")
		return Rate{Value: s.defaultRate, Source: "fixed-default", Degraded: true}, nil
	}

	return Rate{}, fmt.Errorf("no FX rate available for %s->%s and no fixed default configured", s.base, s.quote)
}

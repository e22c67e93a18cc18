package engine

import (
	"fmt"

	"bridge-router/internal/config"
)

// Weights is one normalised ranking weight vector. The four components sum
// to 1.0 after Normalize.
type Weights struct {
	Cost        float64
	Speed       float64
	Reliability float64
	Liquidity   float64
}

// Normalize divides each weight by the total so the vector sums to 1.0.
func (w Weights) Normalize() Weights {
	total := w.Cost + w.Speed + w.Reliability + w.Liquidity
	if total <= 0 {
		return Weights{Cost: 0.25, Speed: 0.25, Reliability: 0.25, Liquidity: 0.25}
	}
	return Weights{
		Cost:        w.Cost / total,
		Speed:       w.Speed / total,
		Reliability: w.Reliability / total,
		Liquidity:   w.Liquidity / total,
	}
}

// Profiles maps optimization mode names to their weight vectors.
type Profiles struct {
	defaultMode string
	byMode      map[string]Weights
}

// ProfilesFromConfig materialises and normalises the configured profiles
// once at startup; ranking calls receive explicit Weights, never raw config.
func ProfilesFromConfig(cfg config.RankingConfig) (*Profiles, error) {
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("ranking profiles: none configured")
	}

	byMode := make(map[string]Weights, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		w := Weights{Cost: p.Cost, Speed: p.Speed, Reliability: p.Reliability, Liquidity: p.Liquidity}
		if w.Cost < 0 || w.Speed < 0 || w.Reliability < 0 || w.Liquidity < 0 {
			return nil, fmt.Errorf("ranking profile %q: negative weight", name)
		}
		byMode[name] = w.Normalize()
	}

	if _, ok := byMode[cfg.DefaultMode]; !ok {
		return nil, fmt.Errorf("ranking default mode %q has no profile", cfg.DefaultMode)
	}

	return &Profiles{defaultMode: cfg.DefaultMode, byMode: byMode}, nil
}

// Resolve returns the weights for a mode, falling back to the default
// profile for unknown or empty modes. The boolean reports an exact match.
func (p *Profiles) Resolve(mode string) (Weights, bool) {
	if w, ok := p.byMode[mode]; ok {
		return w, true
	}
	return p.byMode[p.defaultMode], false
}

// DefaultMode names the fallback profile.
func (p *Profiles) DefaultMode() string {
	return p.defaultMode
}

// Modes lists configured mode names.
func (p *Profiles) Modes() []string {
	out := make([]string, 0, len(p.byMode))
	for name := range p.byMode {
		out = append(out, name)
	}
	return out
}

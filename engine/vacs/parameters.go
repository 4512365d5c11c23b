package vacs

import (
	"github.com/Carmen-Shannon/vacs-go/common"
	"github.com/Carmen-Shannon/vacs-go/engine/effect"
)

// Parameters are the amplitudes of the five effect stages, each in [0, 1].
type Parameters struct {
	Dissolve float32 `toml:"dissolve"`
	Inflate  float32 `toml:"inflate"`
	Voxelize float32 `toml:"voxelize"`
	Jitter   float32 `toml:"jitter"`
	Digitize float32 `toml:"digitize"`
}

// Clamped returns p with every amplitude clamped to [0, 1]. NaN becomes 0.
func (p Parameters) Clamped() Parameters {
	return Parameters{
		Dissolve: common.Clamp01(p.Dissolve),
		Inflate:  common.Clamp01(p.Inflate),
		Voxelize: common.Clamp01(p.Voxelize),
		Jitter:   common.Clamp01(p.Jitter),
		Digitize: common.Clamp01(p.Digitize),
	}
}

// Amplitude returns the amplitude of one stage. Unknown stages report 0.
func (p Parameters) Amplitude(s effect.Stage) float32 {
	switch s {
	case effect.StageDissolve:
		return p.Dissolve
	case effect.StageInflate:
		return p.Inflate
	case effect.StageVoxelize:
		return p.Voxelize
	case effect.StageJitter:
		return p.Jitter
	case effect.StageDigitize:
		return p.Digitize
	}
	return 0
}

// WithAmplitude returns a copy of p with one stage's amplitude replaced and clamped.
func (p Parameters) WithAmplitude(s effect.Stage, v float32) Parameters {
	v = common.Clamp01(v)
	switch s {
	case effect.StageDissolve:
		p.Dissolve = v
	case effect.StageInflate:
		p.Inflate = v
	case effect.StageVoxelize:
		p.Voxelize = v
	case effect.StageJitter:
		p.Jitter = v
	case effect.StageDigitize:
		p.Digitize = v
	}
	return p
}

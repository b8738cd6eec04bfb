package handlers

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Sleeper waits out simulated latency.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ScaledSleeper sleeps for d multiplied by Factor. A zero Factor never
// waits.
type ScaledSleeper struct {
	Factor float64
}

var (
	// RealTime waits the full simulated delay.
	RealTime Sleeper = ScaledSleeper{Factor: 1}
	// NoDelay returns immediately unless ctx is already done.
	NoDelay Sleeper = ScaledSleeper{}
)

// Sleep blocks for the scaled duration or until ctx is done.
func (s ScaledSleeper) Sleep(ctx context.Context, d time.Duration) error {
	d = time.Duration(float64(d) * s.Factor)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Rand is the pseudo-random source for the switch handler.
type Rand interface {
	IntN(n int) int
}

// RandFunc adapts a function to Rand.
type RandFunc func(n int) int

// IntN calls f.
func (f RandFunc) IntN(n int) int { return f(n) }

// TextGenerator produces text for the ai_gemini node. Implementations never
// fail; problems are reported in the returned text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) string
}

// Deps are the collaborators of the built-in handlers.
type Deps struct {
	Sleeper Sleeper
	Rand    Rand
	Text    TextGenerator
	Logger  *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Sleeper == nil {
		d.Sleeper = RealTime
	}
	if d.Rand == nil {
		d.Rand = RandFunc(rand.IntN)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

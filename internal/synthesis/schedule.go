package synthesis

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/nanosynth/internal/clock"
)

// Default delays of the concentration-control start sequence
const (
	DefaultSoluteLead = 60 * time.Second
	DefaultReagentGap = 30 * time.Second
)

// Step starts a group of pumps, then waits Delay before the next step
type Step struct {
	Label string
	Pumps []Pump
	Delay time.Duration
}

// Schedule is an ordered list of start steps
type Schedule []Step

// ConcentrationSchedule starts diluent and solute together, reagent A after
// lead, and reagent B after a further gap.
func ConcentrationSchedule(diluent, solute, reagentA, reagentB Pump, lead, gap time.Duration) Schedule {
	return Schedule{
		{Label: "diluent and solute", Pumps: []Pump{diluent, solute}, Delay: lead},
		{Label: "reagent A", Pumps: []Pump{reagentA}, Delay: gap},
		{Label: "reagent B", Pumps: []Pump{reagentB}},
	}
}

// InlineSchedule starts first, waits delay, then starts second
func InlineSchedule(first, second Pump, delay time.Duration) Schedule {
	return Schedule{
		{Label: "two inlet", Pumps: []Pump{first}, Delay: delay},
		{Label: "one inlet", Pumps: []Pump{second}},
	}
}

// Execute runs every step in order. No delay follows the last step.
func (s Schedule) Execute(ctx context.Context, sleep clock.SleepFunc) error {
	for i, step := range s {
		for _, p := range step.Pumps {
			if err := p.Run(ctx); err != nil {
				return err
			}
		}
		log.Info().Str("step", step.Label).Msg("Pumps started")

		if i == len(s)-1 || step.Delay <= 0 {
			continue
		}
		log.Debug().Dur("delay", step.Delay).Msg("Waiting before next start")
		if err := sleep(ctx, step.Delay); err != nil {
			return err
		}
	}
	return nil
}

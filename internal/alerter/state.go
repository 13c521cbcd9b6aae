package alerter

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coursewatch/coursewatch/internal/config"
	"github.com/coursewatch/coursewatch/internal/evaluator"
	"github.com/coursewatch/coursewatch/internal/types"
)

// Policy decides when an open section triggers a notification.
type Policy string

const (
	// PolicyOnTransition alerts once per open streak: when a key moves from
	// closed or unknown to open. It re-arms after the key is seen closed.
	PolicyOnTransition Policy = config.PolicyOnTransition
	// PolicyEveryCycle alerts on every cycle a key is observed open.
	PolicyEveryCycle Policy = config.PolicyEveryCycle
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyOnTransition, PolicyEveryCycle:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown alert policy %q", s)
}

// Record is the dedup state kept for one tracked key.
type Record struct {
	LastStatus types.Status
	Alerted    bool
}

// State tracks which tracked keys have already been alerted for their current
// open streak. It is owned by the polling goroutine and is not locked.
type State struct {
	policy  Policy
	logger  zerolog.Logger
	records map[types.ResourceKey]*Record
}

// NewState creates a state with every tracked key at Unknown/not alerted.
func NewState(tracked []types.ResourceKey, policy Policy, logger zerolog.Logger) *State {
	records := make(map[types.ResourceKey]*Record, len(tracked))
	for _, key := range tracked {
		records[key] = &Record{LastStatus: types.StatusUnknown}
	}
	return &State{
		policy:  policy,
		logger:  logger.With().Str("component", "alert-state").Logger(),
		records: records,
	}
}

// Policy returns the active dedup policy.
func (s *State) Policy() Policy {
	return s.policy
}

// Update applies one cycle of diff results and returns the keys to notify,
// in the order of results.
func (s *State) Update(results []evaluator.Result) []types.ResourceKey {
	var notify []types.ResourceKey

	for _, res := range results {
		rec, ok := s.records[res.Key]
		if !ok {
			continue
		}

		switch res.Status {
		case types.StatusOpen:
			if s.policy == PolicyEveryCycle || !rec.Alerted {
				notify = append(notify, res.Key)
				rec.Alerted = true
			} else {
				s.logger.Debug().
					Stringer("key", res.Key).
					Msg("Section still open, already alerted")
			}
		case types.StatusClosed:
			if rec.Alerted {
				s.logger.Info().
					Stringer("key", res.Key).
					Msg("Section closed again, alert re-armed")
			}
			rec.Alerted = false
		}

		if rec.LastStatus != res.Status && rec.LastStatus != types.StatusUnknown {
			s.logger.Info().
				Stringer("key", res.Key).
				Stringer("from", rec.LastStatus).
				Stringer("to", res.Status).
				Msg("Section status changed")
		}
		rec.LastStatus = res.Status
	}

	return notify
}

// Records returns a copy of the current dedup state.
func (s *State) Records() map[types.ResourceKey]Record {
	out := make(map[types.ResourceKey]Record, len(s.records))
	for k, rec := range s.records {
		out[k] = *rec
	}
	return out
}

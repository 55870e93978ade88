// Package selection resolves which items a run targets from a selection
// configuration: everything, an explicit id list, or a random sample by count
// or percentage.
package selection

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// Mode determines how items are selected for a run.
type Mode string

const (
	ModeAll           Mode = "all"
	ModeManual        Mode = "manual"
	ModeRandomCount   Mode = "random_count"
	ModeRandomPercent Mode = "random_percent"
)

// Config is the selection rule for a run. Only the field matching Mode is
// consulted.
type Config struct {
	Mode     Mode        `json:"mode"`
	ImageIDs []uuid.UUID `json:"image_ids,omitempty"`
	Count    int         `json:"count,omitempty"`
	Percent  float64     `json:"percent,omitempty"`
}

// Validate checks the configuration at run-creation time.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeAll:
		return nil
	case ModeManual:
		if len(c.ImageIDs) == 0 {
			return fmt.Errorf("manual selection requires at least one image id")
		}
		return nil
	case ModeRandomCount:
		if c.Count < 1 {
			return fmt.Errorf("random_count selection requires count >= 1, got %d", c.Count)
		}
		return nil
	case ModeRandomPercent:
		if c.Percent <= 0 || c.Percent > 100 {
			return fmt.Errorf("random_percent selection requires percent in (0,100], got %v", c.Percent)
		}
		return nil
	default:
		return fmt.Errorf("unknown selection mode %q", c.Mode)
	}
}

// Apply filters candidate item ids according to the configuration. Manual
// mode preserves the candidate order and drops ids not present in the
// collection; random modes sample without replacement.
func (c Config) Apply(candidates []uuid.UUID) ([]uuid.UUID, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Mode {
	case ModeAll:
		return candidates, nil

	case ModeManual:
		wanted := make(map[uuid.UUID]bool, len(c.ImageIDs))
		for _, id := range c.ImageIDs {
			wanted[id] = true
		}
		selected := make([]uuid.UUID, 0, len(c.ImageIDs))
		for _, id := range candidates {
			if wanted[id] {
				selected = append(selected, id)
			}
		}
		return selected, nil

	case ModeRandomCount:
		return sample(candidates, c.Count), nil

	case ModeRandomPercent:
		n := int(math.Ceil(float64(len(candidates)) * c.Percent / 100))
		return sample(candidates, n), nil
	}

	return nil, fmt.Errorf("unknown selection mode %q", c.Mode)
}

// sample picks n items uniformly without replacement. Asking for more items
// than exist returns all of them, shuffled.
func sample(candidates []uuid.UUID, n int) []uuid.UUID {
	if n >= len(candidates) {
		n = len(candidates)
	}
	shuffled := make([]uuid.UUID, len(candidates))
	copy(shuffled, candidates)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

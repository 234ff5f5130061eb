package breathing

import (
	"fmt"

	"github.com/BTreeMap/Tranquil/internal/models"
)

// Built-in program identifiers.
const (
	ProgramFourSevenEight = "4-7-8"
	ProgramBox            = "box"
)

// Phase names used by the built-in programs.
const (
	PhaseInhale  = "Inhale"
	PhaseHold    = "Hold"
	PhaseExhale  = "Exhale"
	PhaseHoldBox = "Hold (Box)"
)

// BoxConfig holds the configurable Box breathing durations.
type BoxConfig struct {
	Inhale          int `json:"inhale" toml:"inhale"`
	HoldAfterInhale int `json:"hold_after_inhale" toml:"hold_after_inhale"`
	Exhale          int `json:"exhale" toml:"exhale"`
	HoldAfterExhale int `json:"hold_after_exhale" toml:"hold_after_exhale"`
	Repetitions     int `json:"repetitions" toml:"repetitions"`
}

// DefaultBoxConfig is four seconds per side, four times.
func DefaultBoxConfig() BoxConfig {
	return BoxConfig{Inhale: 4, HoldAfterInhale: 4, Exhale: 4, HoldAfterExhale: 4, Repetitions: 4}
}

// FourSevenEight returns the 4-7-8 relaxing breath program.
func FourSevenEight() models.PhaseProgram {
	return models.PhaseProgram{
		ID:   ProgramFourSevenEight,
		Name: "4-7-8 Breathing",
		Phases: []models.BreathingPhase{
			{Name: PhaseInhale, Duration: 4},
			{Name: PhaseHold, Duration: 7},
			{Name: PhaseExhale, Duration: 8},
		},
		Repetitions: 4,
		Instructions: models.Instructions{
			Title:       "4-7-8 Breathing: The Relaxing Breath",
			Description: "This technique is a natural tranquilizer for the nervous system. It helps to calm a racing mind and promote relaxation.",
			Steps: []string{
				`1. Exhale completely through your mouth, making a "whoosh" sound.`,
				"2. Close your mouth and inhale quietly through your nose to a mental count of 4.",
				"3. Hold your breath for a count of 7.",
				`4. Exhale completely through your mouth, making a "whoosh" sound to a count of 8.`,
				"5. This is one breath. Now inhale again and repeat the cycle three more times for a total of four breaths.",
			},
		},
	}
}

// Box returns the Box (square) breathing program for cfg.
func Box(cfg BoxConfig) models.PhaseProgram {
	return models.PhaseProgram{
		ID:   ProgramBox,
		Name: "Box Breathing",
		Phases: []models.BreathingPhase{
			{Name: PhaseInhale, Duration: cfg.Inhale},
			{Name: PhaseHold, Duration: cfg.HoldAfterInhale},
			{Name: PhaseExhale, Duration: cfg.Exhale},
			{Name: PhaseHoldBox, Duration: cfg.HoldAfterExhale},
		},
		Repetitions: cfg.Repetitions,
		Instructions: models.Instructions{
			Title:       "Box Breathing: Square Breathing",
			Description: "Also known as Square Breathing, this technique helps to calm the nervous system and reduce stress. It is often used by athletes and first responders for focus.",
			Steps: []string{
				fmt.Sprintf("1. Exhale completely to a count of %d.", cfg.Exhale),
				fmt.Sprintf("2. Inhale slowly through your nose to a count of %d.", cfg.Inhale),
				fmt.Sprintf("3. Hold your breath for a count of %d.", cfg.HoldAfterInhale),
				fmt.Sprintf("4. Exhale slowly through your mouth to a count of %d.", cfg.Exhale),
				fmt.Sprintf("5. Hold your breath for a count of %d.", cfg.HoldAfterExhale),
				fmt.Sprintf("6. Repeat this cycle %d times.", cfg.Repetitions),
			},
		},
	}
}

// Catalog is the set of programs a user can pick from, in display order.
type Catalog struct {
	programs []models.PhaseProgram
}

// NewCatalog validates and indexes programs. Program IDs must be unique.
func NewCatalog(programs ...models.PhaseProgram) (*Catalog, error) {
	seen := make(map[string]bool, len(programs))
	for _, p := range programs {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: program without id", ErrInvalidProgram)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate program id %q", ErrInvalidProgram, p.ID)
		}
		seen[p.ID] = true
		if err := Validate(p); err != nil {
			return nil, err
		}
	}
	return &Catalog{programs: append([]models.PhaseProgram(nil), programs...)}, nil
}

// DefaultCatalog returns 4-7-8 and Box with the given Box configuration.
func DefaultCatalog(box BoxConfig) (*Catalog, error) {
	return NewCatalog(FourSevenEight(), Box(box))
}

// List returns all programs.
func (c *Catalog) List() []models.PhaseProgram {
	return append([]models.PhaseProgram(nil), c.programs...)
}

// Get looks up a program by ID.
func (c *Catalog) Get(id string) (models.PhaseProgram, bool) {
	for _, p := range c.programs {
		if p.ID == id {
			return p, true
		}
	}
	return models.PhaseProgram{}, false
}

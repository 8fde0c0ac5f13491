package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Trading skill names.
const (
	SkillBrokerRelations = "broker_relations"
	SkillAccounting      = "accounting"
	SkillMarginTrading   = "margin_trading"
	SkillMarketing       = "marketing"
	SkillProcurement     = "procurement"
	SkillDaytrading      = "daytrading"
	SkillVisibility      = "visibility"
	SkillTrade           = "trade"
)

const maxSkillLevel = 5

var defaultSkillLevels = map[string]int{
	SkillBrokerRelations: 5,
	SkillAccounting:      5,
	SkillMarginTrading:   4,
	SkillMarketing:       4,
	SkillProcurement:     4,
	SkillDaytrading:      0,
	SkillVisibility:      0,
	SkillTrade:           3,
}

// SkillSet holds the trading skill levels used by the fee model. Safe for concurrent use.
type SkillSet struct {
	mu     sync.RWMutex
	levels map[string]int
}

// NewSkillSet returns a skill set at the default levels.
func NewSkillSet() *SkillSet {
	s := &SkillSet{levels: make(map[string]int, len(defaultSkillLevels))}
	for k, v := range defaultSkillLevels {
		s.levels[k] = v
	}
	return s
}

// Level returns the level of a skill (0 for unknown names).
func (s *SkillSet) Level(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levels[name]
}

// Snapshot returns a copy of all levels.
func (s *SkillSet) Snapshot() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.levels))
	for k, v := range s.levels {
		out[k] = v
	}
	return out
}

// Update applies new levels. Every name is checked before anything changes, so an
// unknown skill leaves the set untouched. Levels are clamped to 0..5.
func (s *SkillSet) Update(levels map[string]int) error {
	var unknown []string
	for name := range levels {
		if _, ok := defaultSkillLevels[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %v", ErrUnknownSkill, unknown)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, lvl := range levels {
		s.levels[name] = clampLevel(lvl)
	}
	return nil
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > maxSkillLevel {
		return maxSkillLevel
	}
	return level
}

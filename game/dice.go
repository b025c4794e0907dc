// Package game implements the dice-rolling logic for table commands.
package game

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

// Bounds reject abusive notations before any die is rolled.
const (
	MaxDice     = 100
	MaxSides    = 1000
	MaxModifier = 1000
)

// Captures: (1) dice count, (2) sides, (3) signed modifier.
var dicePattern = regexp.MustCompile(`^(\d*)[dD](\d+)([+-]\d+)?$`)

// RollResult is a structured outcome of a dice roll.
type RollResult struct {
	Rolls    []int
	Modifier int
	Total    int
}

// Roller parses standard "NdS+M" notation and rolls the dice.
type Roller struct {
	rng *rand.Rand
}

func NewRoller() *Roller {
	return &Roller{}
}

// NewSeededRoller returns a roller with a deterministic source.
func NewSeededRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Roll parses a notation such as "1d20" or "2d6+3" and rolls it. The dice
// count defaults to 1 when omitted. Notations that do not parse or fall
// outside the sane bounds produce no result.
func (r *Roller) Roll(notation string) (RollResult, bool) {
	match := dicePattern.FindStringSubmatch(strings.TrimSpace(notation))
	if match == nil {
		return RollResult{}, false
	}

	count := 1
	if match[1] != "" {
		count, _ = strconv.Atoi(match[1])
	}
	sides, _ := strconv.Atoi(match[2])
	modifier := 0
	if match[3] != "" {
		modifier, _ = strconv.Atoi(match[3])
	}

	if count < 1 || count > MaxDice {
		return RollResult{}, false
	}
	if sides < 1 || sides > MaxSides {
		return RollResult{}, false
	}
	if modifier < -MaxModifier || modifier > MaxModifier {
		return RollResult{}, false
	}

	rolls := make([]int, count)
	total := modifier
	for i := range rolls {
		rolls[i] = r.intn(sides) + 1
		total += rolls[i]
	}
	return RollResult{Rolls: rolls, Modifier: modifier, Total: total}, true
}

func (r *Roller) intn(n int) int {
	if r.rng != nil {
		return r.rng.Intn(n)
	}
	return rand.Intn(n)
}

// Format renders a roll for the room log, e.g. "`2d6+3` → [5 2] + 3 = **10**".
func (res RollResult) Format(notation string) string {
	rolls := fmt.Sprint(res.Rolls)
	switch {
	case res.Modifier > 0:
		return fmt.Sprintf("`%s` → %s + %d = **%d**", notation, rolls, res.Modifier, res.Total)
	case res.Modifier < 0:
		return fmt.Sprintf("`%s` → %s - %d = **%d**", notation, rolls, -res.Modifier, res.Total)
	default:
		return fmt.Sprintf("`%s` → %s = **%d**", notation, rolls, res.Total)
	}
}

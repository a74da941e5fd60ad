/*
   elasticmv - Elastic coded distributed matrix-vector multiplication
   Copyright (C) 2017  The elasticmv Authors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package coordinator

import (
	"math/rand"
	"sync"

	"github.com/jmcvetta/randutil"
)

// Policy decides before each round whether the active worker count changes.
type Policy interface {
	Next(round, current int) (n int, change bool)
}

// StaticPolicy never reconfigures.
type StaticPolicy struct{}

func (StaticPolicy) Next(round, current int) (int, bool) { return current, false }

// ScriptedPolicy reconfigures to a fixed count at fixed rounds.
type ScriptedPolicy map[int]int

func (p ScriptedPolicy) Next(round, current int) (int, bool) {
	n, ok := p[round]
	if !ok || n == current {
		return current, false
	}
	return n, true
}

// RandomPolicy changes the worker count with a fixed probability per round,
// never before the first round has run. The new count is drawn from the
// supported counts other than the current one, by weight.
type RandomPolicy struct {
	probability float64
	counts      []int
	weights     map[int]int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy returns a policy choosing among counts. A count missing
// from weights or weighted zero gets weight 100; a negative weight excludes
// it.
func NewRandomPolicy(probability float64, counts []int, weights map[int]int, rng *rand.Rand) *RandomPolicy {
	return &RandomPolicy{
		probability: probability,
		counts:      append([]int(nil), counts...),
		weights:     weights,
		rng:         rng,
	}
}

func (p *RandomPolicy) Next(round, current int) (int, bool) {
	if round == 0 || p.probability <= 0 {
		return current, false
	}
	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()
	if roll >= p.probability {
		return current, false
	}

	var choices []randutil.Choice
	for _, n := range p.counts {
		if n == current {
			continue
		}
		weight := p.weights[n]
		if weight == 0 {
			weight = 100
		}
		if weight > 0 {
			choices = append(choices, randutil.Choice{Weight: weight, Item: n})
		}
	}
	if len(choices) == 0 {
		return current, false
	}
	choice, err := randutil.WeightedChoice(choices)
	if err != nil {
		return current, false
	}
	return choice.Item.(int), true
}

/*
 * Copyright 2024 The ucc Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ssa

import (
    `github.com/oleiade/lane`
)

type Direction uint8

const (
    Forward Direction = iota
    Backward
)

// Facts is a finite lattice value: a set of facts of some comparable type.
// The empty set is bottom; meet and join are implemented by the Problem.
type Facts[F comparable] map[F]struct{}

func (self Facts[F]) Has(f F) bool {
    _, ok := self[f]
    return ok
}

func (self Facts[F]) Add(f F) {
    self[f] = struct{}{}
}

func (self Facts[F]) Remove(f F) {
    delete(self, f)
}

func (self Facts[F]) Clone() Facts[F] {
    r := make(Facts[F], len(self))
    for f := range self {
        r[f] = struct{}{}
    }
    return r
}

func (self Facts[F]) Union(other Facts[F]) {
    for f := range other {
        self[f] = struct{}{}
    }
}

func (self Facts[F]) Equal(other Facts[F]) bool {
    if len(self) != len(other) {
        return false
    }
    for f := range self {
        if _, ok := other[f]; !ok {
            return false
        }
    }
    return true
}

// Problem configures the solver: a direction, a meet operator, a per-block
// transfer function and an optional per-edge filter. Transfer functions must
// be monotone for the fixpoint to exist.
type Problem[F comparable] interface {
    Direction() Direction

    /* Meet merges a neighbor's boundary value into acc. Both analyses here
     * use set union (may-style), but the solver does not assume it. */
    Meet(acc Facts[F], v Facts[F])

    /* Transfer applies the whole block to the incoming boundary value and
     * returns the outgoing one. Instructions are visited in execution order
     * for forward problems and in reverse order for backward ones. */
    Transfer(bb *BasicBlock, v Facts[F]) Facts[F]

    /* EdgeValue adjusts a boundary value as it flows across the edge
     * from -> to, e.g. to account for phi operands. Identity for problems
     * with no edge sensitivity. */
    EdgeValue(from *BasicBlock, to *BasicBlock, v Facts[F]) Facts[F]
}

// Solution holds the settled boundary values per block label. Capped is set
// when the solver gave up at its iteration limit; the values are then the
// last computed approximation, sound but possibly imprecise.
type Solution[F comparable] struct {
    In     map[int]Facts[F]
    Out    map[int]Facts[F]
    Capped bool
}

// Solve runs the worklist algorithm to a fixpoint. The lattice has finite
// height per block (sets over a finite universe), so with monotone transfer
// functions the worklist always drains; cap bounds the number of block
// visits anyway, so a misbehaving client degrades instead of spinning.
func Solve[F comparable](cfg *CFG, p Problem[F], limit int) Solution[F] {
    sol := Solution[F] {
        In  : make(map[int]Facts[F]),
        Out : make(map[int]Facts[F]),
    }

    /* seed every block with empty boundary values, worklist in reverse
     * post-order for forward problems and post-order for backward ones */
    q := lane.NewQueue()
    on := make(map[int]bool)
    blocks := cfg.Blocks()
    if p.Direction() == Backward {
        blockreverse(blocks)
    }
    for _, bb := range blocks {
        sol.In[bb.Id] = make(Facts[F])
        sol.Out[bb.Id] = make(Facts[F])
        on[bb.Id] = true
        q.Enqueue(bb)
    }

    /* drain the worklist */
    for n := 0; !q.Empty(); n++ {
        if limit > 0 && n >= limit {
            sol.Capped = true
            break
        }
        bb := q.Dequeue().(*BasicBlock)
        on[bb.Id] = false

        /* merge the relevant neighbor boundary values */
        acc := make(Facts[F])
        if p.Direction() == Forward {
            for _, pred := range bb.Pred {
                p.Meet(acc, p.EdgeValue(pred, bb, sol.Out[pred.Id]))
            }
        } else {
            for _, succ := range bb.Term.Successors() {
                p.Meet(acc, p.EdgeValue(bb, succ, sol.In[succ.Id]))
            }
        }

        /* apply the transfer function over the block */
        out := p.Transfer(bb, acc.Clone())

        /* re-enqueue the neighbors whose boundary input changed */
        if p.Direction() == Forward {
            sol.In[bb.Id] = acc
            if !out.Equal(sol.Out[bb.Id]) {
                sol.Out[bb.Id] = out
                for _, succ := range bb.Term.Successors() {
                    if !on[succ.Id] {
                        on[succ.Id] = true
                        q.Enqueue(succ)
                    }
                }
            }
        } else {
            sol.Out[bb.Id] = acc
            if !out.Equal(sol.In[bb.Id]) {
                sol.In[bb.Id] = out
                for _, pred := range bb.Pred {
                    if !on[pred.Id] {
                        on[pred.Id] = true
                        q.Enqueue(pred)
                    }
                }
            }
        }
    }
    return sol
}

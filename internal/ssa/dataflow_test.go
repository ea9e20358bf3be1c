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
    `testing`

    `github.com/stretchr/testify/require`
)

func TestReachingDefs_Diamond(t *testing.T) {
    fn := parsefn(t, _Diamond)
    sol := NewReachingDefs(fn).Solve(0)
    require.False(t, sol.Capped)

    /* both arm definitions reach the join entry */
    in := sol.In[3]
    var regs []string
    for f := range in {
        regs = append(regs, f.R.String())
    }
    require.Contains(t, regs, "%1")
    require.Contains(t, regs, "%2")

    /* the parameter definition reaches everywhere */
    c := fn.Params[0].R
    for _, bb := range fn.CFG.Blocks() {
        if bb != fn.CFG.Root {
            require.Truef(t, sol.In[bb.Id].Has(Def { R: c }), "param does not reach bb_%d", bb.Id)
        }
    }
}

func TestReachingDefs_LoopSettles(t *testing.T) {
    fn := parsefn(t, _Loop)
    sol := NewReachingDefs(fn).Solve(0)
    require.False(t, sol.Capped)

    /* the increment from the body reaches the header around the back edge */
    found := false
    for f := range sol.In[1] {
        if f.R.String() == "%3" {
            found = true
        }
    }
    require.True(t, found)
}

func TestSolve_IterationCap(t *testing.T) {
    fn := parsefn(t, _Loop)
    sol := NewReachingDefs(fn).Solve(1)
    require.True(t, sol.Capped)
}

func TestSolve_Idempotent(t *testing.T) {
    fn := parsefn(t, _Loop)
    a := NewReachingDefs(fn).Solve(0)
    b := NewReachingDefs(fn).Solve(0)

    for _, bb := range fn.CFG.Blocks() {
        require.True(t, a.In[bb.Id].Equal(b.In[bb.Id]))
        require.True(t, a.Out[bb.Id].Equal(b.Out[bb.Id]))
    }
}

func TestLiveness_Loop(t *testing.T) {
    fn := parsefn(t, _Loop)
    sol := NewLiveness(fn).Solve(0)
    require.False(t, sol.Capped)

    /* the phi result is live out of the header into the body */
    header := fn.Block(1)
    phi := header.Phi[0].R
    require.True(t, sol.Out[1].Has(phi))

    /* the increment is live out of the body: the back edge phi consumes it */
    var inc Reg
    for _, ins := range fn.Block(2).Ins {
        if v, ok := ins.(*IrBinaryExpr); ok {
            inc = v.R
        }
    }
    require.True(t, sol.Out[2].Has(inc))

    /* nothing is live out of the exit */
    require.Empty(t, sol.Out[3])
}

// a loop header whose phis exchange their values through the back edge; each
// phi's operand is the other phi's result
const _SwapLoop = `
define @f(%c : bool) : int {
bb_0:
    %1 = literal 1 : int
    %2 = literal 2 : int
    jump bb_1
bb_1:
    %3 = phi (%1, bb_0), (%4, bb_1) : int
    %4 = phi (%2, bb_0), (%3, bb_1) : int
    cbranch %c, bb_1, bb_2
bb_2:
    ret %3 : int
}
`

func TestLiveness_SwappingPhisKeepEachOtherLive(t *testing.T) {
    fn := parsefn(t, _SwapLoop)
    sol := NewLiveness(fn).Solve(0)
    require.False(t, sol.Capped)

    /* both results cross the back edge: %3 feeds %4 and %4 feeds %3, and
     * the parallel assignment must not let one cancel the other */
    header := fn.Block(1)
    require.True(t, sol.Out[1].Has(header.Phi[0].R))
    require.True(t, sol.Out[1].Has(header.Phi[1].R))
}

func TestLiveness_PhiOperandsAreEdgeUses(t *testing.T) {
    fn := parsefn(t, _Diamond)
    sol := NewLiveness(fn).Solve(0)

    /* each arm keeps only its own phi operand alive */
    var tb, fb Reg
    for _, ins := range fn.Block(1).Ins {
        tb = *definitions(ins)[0]
    }
    for _, ins := range fn.Block(2).Ins {
        fb = *definitions(ins)[0]
    }
    require.True(t, sol.Out[1].Has(tb))
    require.False(t, sol.Out[1].Has(fb))
    require.True(t, sol.Out[2].Has(fb))
    require.False(t, sol.Out[2].Has(tb))
}

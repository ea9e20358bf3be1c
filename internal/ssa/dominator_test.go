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

// parsefn is the test shorthand: parse a single function and rebuild its CFG.
func parsefn(t *testing.T, src string) *Function {
    mod, err := ParseModule("test", src)
    require.NoError(t, err)
    require.Equal(t, 1, len(mod.Funcs))
    return mod.Funcs[0]
}

const _Diamond = `
define @f(%c : bool) : int {
bb_0:
    cbranch %c, bb_1, bb_2
bb_1:
    %1 = literal 1 : int
    jump bb_3
bb_2:
    %2 = literal 2 : int
    jump bb_3
bb_3:
    %3 = phi (%1, bb_1), (%2, bb_2) : int
    ret %3 : int
}
`

func TestDominator_Diamond(t *testing.T) {
    fn := parsefn(t, _Diamond)
    cfg := fn.CFG

    entry := fn.Block(0)
    tb := fn.Block(1)
    fb := fn.Block(2)
    join := fn.Block(3)

    /* the join is dominated by the entry, not by either arm */
    require.Equal(t, entry, cfg.DominatedBy[tb.Id])
    require.Equal(t, entry, cfg.DominatedBy[fb.Id])
    require.Equal(t, entry, cfg.DominatedBy[join.Id])

    /* both arms have the join in their dominance frontier */
    require.Equal(t, []*BasicBlock { join }, cfg.DominanceFrontier[tb.Id])
    require.Equal(t, []*BasicBlock { join }, cfg.DominanceFrontier[fb.Id])
    require.Empty(t, cfg.DominanceFrontier[entry.Id])
}

const _Loop = `
define @f() : void {
bb_0:
    %1 = literal 0 : int
    jump bb_1
bb_1:
    %2 = phi (%1, bb_0), (%3, bb_2) : int
    %4 = literal 10 : int
    %5 = lt %2, %4 : int
    cbranch %5, bb_2, bb_3
bb_2:
    %6 = literal 1 : int
    %3 = add %2, %6 : int
    jump bb_1
bb_3:
    ret : void
}
`

func TestDominator_Loop(t *testing.T) {
    fn := parsefn(t, _Loop)
    cfg := fn.CFG

    header := fn.Block(1)
    body := fn.Block(2)
    exit := fn.Block(3)

    require.Equal(t, header, cfg.DominatedBy[body.Id])
    require.Equal(t, header, cfg.DominatedBy[exit.Id])

    /* the header is in its own dominance frontier through the back edge */
    require.Contains(t, cfg.DominanceFrontier[header.Id], header)
    require.Contains(t, cfg.DominanceFrontier[body.Id], header)
}

func TestCFG_PostOrderVisitsDominatedFirst(t *testing.T) {
    fn := parsefn(t, _Diamond)
    cfg := fn.CFG

    /* every block comes after everything it dominates */
    seen := make(map[int]bool)
    cfg.PostOrder().ForEach(func(bb *BasicBlock) {
        for _, c := range cfg.DominatorOf[bb.Id] {
            require.Truef(t, seen[c.Id], "bb_%d visited before its child bb_%d", bb.Id, c.Id)
        }
        seen[bb.Id] = true
    })
    require.Equal(t, 4, len(seen))
}

func TestDominator_TreeCoversReachable(t *testing.T) {
    mod := &Module { Name: "test" }
    fn, err := BuildFunc(mod, condassign())
    require.NoError(t, err)

    for _, bb := range fn.CFG.Blocks() {
        if bb != fn.CFG.Root {
            require.NotNilf(t, fn.CFG.DominatedBy[bb.Id], "bb_%d has no immediate dominator", bb.Id)
        }
    }
}

func TestCFG_RebuildDropsStaleEdges(t *testing.T) {
    fn := parsefn(t, _Diamond)

    /* cut the false arm and rebuild: the phi must lose the operand */
    fn.Block(0).Term = &IrBranch { To: fn.Block(1) }
    fn.CFG.Rebuild()

    join := fn.Block(3)
    require.Equal(t, 1, len(join.Pred))
    require.Equal(t, 1, len(join.Phi[0].V))
}

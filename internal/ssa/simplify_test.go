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

func TestSimplify_ConstantBranch(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    %1 = literal true : bool
    cbranch %1, bb_1, bb_2
bb_1:
    %2 = literal 1 : int
    ret %2 : int
bb_2:
    %3 = literal 2 : int
    ret %3 : int
}
`)
    require.True(t, Simplify{}.Apply(fn))
    require.NoError(t, Check(fn))

    /* the false arm is un reachable and swept; the true arm is merged */
    require.Equal(t, 1, len(fn.AllBlocks()))
    r, ok := fn.CFG.Root.Term.(*IrReturn)
    require.True(t, ok)

    v, ok := definedBy(fn.CFG)[r.V].(*IrConstInt)
    require.True(t, ok)
    require.Equal(t, int64(1), v.V)
}

func TestSimplify_MergeChain(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    %1 = literal 1 : int
    jump bb_1
bb_1:
    %2 = literal 2 : int
    jump bb_2
bb_2:
    %3 = add %1, %2 : int
    ret %3 : int
}
`)
    require.True(t, Simplify{}.Apply(fn))
    require.Equal(t, 1, len(fn.AllBlocks()))
    require.Equal(t, 3, len(fn.CFG.Root.Ins))
}

func TestSimplify_ThreadEmptyBlock(t *testing.T) {
    fn := parsefn(t, `
define @f(%c : bool) : void {
bb_0:
    cbranch %c, bb_1, bb_2
bb_1:
    jump bb_2
bb_2:
    ret : void
}
`)
    require.True(t, Simplify{}.Apply(fn))
    require.NoError(t, Check(fn))

    /* both arms point straight at the exit now, and the branch with equal
     * arms collapses into a jump, so everything merges into one block */
    require.Equal(t, 1, len(fn.AllBlocks()))
}

func TestSimplify_TrivialPhi(t *testing.T) {
    fn := parsefn(t, `
define @f(%c : bool, %x : int) : int {
bb_0:
    cbranch %c, bb_1, bb_2
bb_1:
    jump bb_3
bb_2:
    jump bb_3
bb_3:
    %1 = phi (%x, bb_1), (%x, bb_2) : int
    ret %1 : int
}
`)
    require.True(t, Simplify{}.Apply(fn))
    require.NoError(t, Check(fn))
    require.Empty(t, allphis(fn))

    /* the returned value is the parameter itself */
    r := fn.CFG.Root.Term
    for _, bb := range fn.CFG.Blocks() {
        if ret, ok := bb.Term.(*IrReturn); ok {
            require.Equal(t, fn.Params[1].R, ret.V)
            return
        }
    }
    t.Fatalf("no return block, root terminator is %v", r)
}

func TestSimplify_KeepsRealDiamond(t *testing.T) {
    fn := parsefn(t, _Diamond)
    nb := len(fn.CFG.Blocks())
    Simplify{}.Apply(fn)

    /* a genuine merge of two values must survive intact */
    require.Equal(t, nb, len(fn.CFG.Blocks()))
    require.Equal(t, 1, len(allphis(fn)))
    require.NoError(t, Check(fn))
}

func TestSimplify_Idempotent(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    %1 = literal true : bool
    cbranch %1, bb_1, bb_2
bb_1:
    %2 = literal 1 : int
    jump bb_3
bb_2:
    %3 = literal 2 : int
    jump bb_3
bb_3:
    %4 = phi (%2, bb_1), (%3, bb_2) : int
    ret %4 : int
}
`)
    require.True(t, Simplify{}.Apply(fn))
    require.False(t, Simplify{}.Apply(fn))
    require.NoError(t, Check(fn))
}

func TestSimplify_UnreachableSweep(t *testing.T) {
    mod := &Module { Name: "test" }
    fn, err := BuildFunc(mod, condassign())
    require.NoError(t, err)
    Promote(fn)

    before := len(fn.AllBlocks())
    Simplify{}.Apply(fn)
    require.LessOrEqual(t, len(fn.AllBlocks()), before)

    /* every surviving block is reachable */
    require.Equal(t, len(fn.CFG.Blocks()), len(fn.AllBlocks()))
}

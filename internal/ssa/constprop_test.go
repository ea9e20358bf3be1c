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

func retdef(t *testing.T, fn *Function) IrNode {
    for _, bb := range fn.CFG.Blocks() {
        if r, ok := bb.Term.(*IrReturn); ok {
            return definedBy(fn.CFG)[r.V]
        }
    }
    t.Fatal("no return")
    return nil
}

func TestConstProp_FoldChain(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    %1 = literal 2 : int
    %2 = literal 3 : int
    %3 = add %1, %2 : int
    %4 = mul %3, %3 : int
    ret %4 : int
}
`)
    require.True(t, ConstProp{}.Apply(fn))
    require.NoError(t, Check(fn))

    /* (2 + 3) * (2 + 3) = 25, folded through the chain */
    v, ok := retdef(t, fn).(*IrConstInt)
    require.True(t, ok)
    require.Equal(t, int64(25), v.V)
}

func TestConstProp_DivByZeroUnfolded(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    %1 = literal 7 : int
    %2 = literal 0 : int
    %3 = div %1, %2 : int
    ret %3 : int
}
`)
    require.False(t, ConstProp{}.Apply(fn))

    /* the fault stays a runtime matter */
    _, ok := retdef(t, fn).(*IrBinaryExpr)
    require.True(t, ok)
}

func TestConstProp_Comparison(t *testing.T) {
    fn := parsefn(t, `
define @f() : bool {
bb_0:
    %1 = literal 2 : int
    %2 = literal 3 : int
    %3 = lt %1, %2 : int
    ret %3 : bool
}
`)
    require.True(t, ConstProp{}.Apply(fn))

    v, ok := retdef(t, fn).(*IrConstBool)
    require.True(t, ok)
    require.True(t, v.V)
}

func TestConstProp_FloatArithmetic(t *testing.T) {
    fn := parsefn(t, `
define @f() : float {
bb_0:
    %1 = literal 1.5 : float
    %2 = literal 2.5 : float
    %3 = add %1, %2 : float
    ret %3 : float
}
`)
    require.True(t, ConstProp{}.Apply(fn))

    v, ok := retdef(t, fn).(*IrConstFloat)
    require.True(t, ok)
    require.Equal(t, 4.0, v.V)
}

func TestConstProp_Convert(t *testing.T) {
    fn := parsefn(t, `
define @f() : float {
bb_0:
    %1 = literal 3 : int
    %2 = sitofp %1 : float
    ret %2 : float
}
`)
    require.True(t, ConstProp{}.Apply(fn))

    v, ok := retdef(t, fn).(*IrConstFloat)
    require.True(t, ok)
    require.Equal(t, 3.0, v.V)
}

func TestConstProp_PhiOfEqualConstants(t *testing.T) {
    fn := parsefn(t, `
define @f(%c : bool) : int {
bb_0:
    cbranch %c, bb_1, bb_2
bb_1:
    %1 = literal 5 : int
    jump bb_3
bb_2:
    %2 = literal 5 : int
    jump bb_3
bb_3:
    %3 = phi (%1, bb_1), (%2, bb_2) : int
    ret %3 : int
}
`)
    require.True(t, ConstProp{}.Apply(fn))
    require.NoError(t, Check(fn))

    v, ok := retdef(t, fn).(*IrConstInt)
    require.True(t, ok)
    require.Equal(t, int64(5), v.V)
    require.Empty(t, allphis(fn))
}

func TestConstProp_PhiOfDifferentConstants(t *testing.T) {
    fn := parsefn(t, _Diamond)
    require.False(t, ConstProp{}.Apply(fn))
    require.Equal(t, 1, len(allphis(fn)))
}

func TestConstProp_UnknownOperandStays(t *testing.T) {
    fn := parsefn(t, `
define @f(%x : int) : int {
bb_0:
    %1 = literal 1 : int
    %2 = add %x, %1 : int
    ret %2 : int
}
`)
    require.False(t, ConstProp{}.Apply(fn))
}

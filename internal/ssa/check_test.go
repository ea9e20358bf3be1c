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
    `strings`
    `testing`

    `github.com/stretchr/testify/require`
)

func TestCheck_WellFormed(t *testing.T) {
    fn := parsefn(t, _Diamond)
    require.NoError(t, Check(fn))
}

func TestCheck_UndefinedUse(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    ret %9 : int
}
`)
    err := Check(fn)
    require.Error(t, err)
    require.Contains(t, err.Error(), "undefined register")
}

func TestCheck_UseBeforeDef(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    %2 = add %1, %1 : int
    %1 = literal 1 : int
    ret %2 : int
}
`)
    err := Check(fn)
    require.Error(t, err)
    require.Contains(t, err.Error(), "before its definition")
}

func TestCheck_UseNotDominated(t *testing.T) {
    /* %1 is defined only on the true arm but used in the join */
    fn := parsefn(t, `
define @f(%c : bool) : int {
bb_0:
    cbranch %c, bb_1, bb_2
bb_1:
    %1 = literal 1 : int
    jump bb_3
bb_2:
    jump bb_3
bb_3:
    ret %1 : int
}
`)
    err := Check(fn)
    require.Error(t, err)
    require.Contains(t, err.Error(), "not dominated")
}

func TestCheck_DuplicateDefinition(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    %1 = literal 1 : int
    %1 = literal 2 : int
    ret %1 : int
}
`)
    err := Check(fn)
    require.Error(t, err)
    require.Contains(t, err.Error(), "multiple definitions")
}

func TestCheck_PhiMatchesPredecessors(t *testing.T) {
    fn := parsefn(t, _Diamond)

    /* knock out one operand behind the CFG's back */
    join := fn.Block(3)
    for from := range join.Phi[0].V {
        delete(join.Phi[0].V, from)
        break
    }

    err := Check(fn)
    require.Error(t, err)
    require.Contains(t, err.Error(), "phi")
}

func TestCheck_ErrorNamesTheBlock(t *testing.T) {
    fn := parsefn(t, `
define @f() : int {
bb_0:
    jump bb_1
bb_1:
    ret %9 : int
}
`)
    err := Check(fn)
    require.Error(t, err)
    require.True(t, strings.Contains(err.Error(), "bb_1"), err.Error())
}

func TestCheck_ParamsDefinedAtEntry(t *testing.T) {
    fn := parsefn(t, `
define @f(%x : int) : int {
bb_0:
    jump bb_1
bb_1:
    %1 = add %x, %x : int
    ret %1 : int
}
`)
    require.NoError(t, Check(fn))
}

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
    `fmt`
)

// StructuralError reports a malformed CFG: a missing terminator, a phi
// operand that does not match a predecessor, a use that is not dominated by
// its definition. It is fatal and aborts the pipeline before optimization.
type StructuralError struct {
    Func  string
    Block int
    Msg   string
}

func (self *StructuralError) Error() string {
    if self.Block < 0 {
        return fmt.Sprintf("structural error in @%s: %s", self.Func, self.Msg)
    } else {
        return fmt.Sprintf("structural error in @%s, bb_%d: %s", self.Func, self.Block, self.Msg)
    }
}

// NonterminationWarning reports that an analysis hit its iteration cap before
// settling. The pipeline proceeds with the last computed approximation, which
// is sound but possibly less precise.
type NonterminationWarning struct {
    Func string
    Pass string
}

func (self *NonterminationWarning) Error() string {
    return fmt.Sprintf("@%s: %s exceeded its iteration cap, proceeding with the last approximation", self.Func, self.Pass)
}

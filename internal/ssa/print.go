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
    `regexp`
    `sort`
    `strconv`
    `strings`
)

var _RegToken = regexp.MustCompile(`%(\d+)(\.\d+)?`)

// FormatModule renders the whole module in the textual form: globals first,
// then every function, all in source order. The output is stable for a fixed
// module and parses back to an equivalent one.
func FormatModule(m *Module) string {
    var sb strings.Builder

    for _, g := range m.Globals {
        sb.WriteString(g.String())
        sb.WriteString("\n")
    }
    for _, fn := range m.Funcs {
        if sb.Len() != 0 {
            sb.WriteString("\n")
        }
        sb.WriteString(FormatFunc(fn))
    }
    return sb.String()
}

// FormatFunc renders one function: reachable blocks in reverse post-order,
// then any not-yet-pruned unreachable blocks by label.
func FormatFunc(fn *Function) string {
    var sb strings.Builder

    /* signature */
    args := make([]string, 0, len(fn.Params))
    for _, p := range fn.Params {
        args = append(args, fmt.Sprintf("%s : %s", fn.regname(p.R), p.Tp))
    }
    fmt.Fprintf(&sb, "define @%s(%s) : %s {\n", fn.Name, strings.Join(args, ", "), fn.Ret)

    /* reachable blocks in canonical order, the rest by label */
    blocks := fn.CFG.Blocks()
    seen := make(map[int]struct{}, len(blocks))
    for _, bb := range blocks {
        seen[bb.Id] = struct{}{}
    }
    rest := make([]*BasicBlock, 0, len(fn.all))
    for _, bb := range fn.all {
        if _, ok := seen[bb.Id]; !ok {
            rest = append(rest, bb)
        }
    }
    sort.Slice(rest, func(i int, j int) bool {
        return rest[i].Id < rest[j].Id
    })

    for _, bb := range append(blocks, rest...) {
        fmt.Fprintf(&sb, "bb_%d:\n", bb.Id)
        for _, p := range bb.Phi {
            fmt.Fprintf(&sb, "    %s\n", fn.rename(p.String()))
        }
        for _, ins := range bb.Ins {
            fmt.Fprintf(&sb, "    %s\n", fn.rename(ins.String()))
        }
        fmt.Fprintf(&sb, "    %s\n", fn.rename(bb.Term.String()))
    }
    sb.WriteString("}\n")
    return sb.String()
}

func (self *Function) regname(r Reg) string {
    if name, ok := self.NameOf(r); ok {
        if v := r.Version(); v != 0 {
            return fmt.Sprintf("%%%s.%d", name, v)
        } else {
            return "%" + name
        }
    }
    return r.String()
}

// rename substitutes the printable names of named registers into a rendered
// instruction. Instructions print registers in the numeric form since they
// do not know the name table.
func (self *Function) rename(s string) string {
    if len(self.names) == 0 {
        return s
    }
    return _RegToken.ReplaceAllStringFunc(s, func(tok string) string {
        var ver string

        body := tok[1:]
        if i := strings.IndexByte(body, '.'); i >= 0 {
            ver = body[i:]
            body = body[:i]
        }
        id, _ := strconv.ParseUint(body, 10, 32)
        if name, ok := self.names[uint32(id)]; ok {
            return "%" + name + ver
        }
        return tok
    })
}

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
    `strconv`
    `strings`

    `github.com/ucclang/ucc/internal/ast`
)

var _BinaryByName = map[string]IrBinaryOp {
    "add": IrOpAdd,
    "sub": IrOpSub,
    "mul": IrOpMul,
    "div": IrOpDiv,
    "mod": IrOpMod,
    "and": IrOpAnd,
    "or" : IrOpOr,
    "lt" : IrCmpLt,
    "le" : IrCmpLe,
    "gt" : IrCmpGt,
    "ge" : IrCmpGe,
    "eq" : IrCmpEq,
    "ne" : IrCmpNe,
}

// ParseModule reads the textual form back into a module. The input does not
// have to be in SSA form, phis and register versions are accepted but not
// required; a malformed input yields a StructuralError naming the offending
// line.
func ParseModule(name string, src string) (*Module, error) {
    p := _Parser {
        mod   : &Module { Name: name },
        lines : strings.Split(src, "\n"),
    }
    if err := p.parse(); err != nil {
        return nil, err
    }
    return p.mod, nil
}

type _Parser struct {
    mod   *Module
    ln    int
    lines []string
}

func (self *_Parser) err(msg string, args ...interface{}) error {
    return &StructuralError {
        Func  : self.mod.Name,
        Block : -1,
        Msg   : fmt.Sprintf("line %d: %s", self.ln + 1, fmt.Sprintf(msg, args...)),
    }
}

func (self *_Parser) parse() error {
    for self.ln = 0; self.ln < len(self.lines); self.ln++ {
        line := strings.TrimSpace(self.lines[self.ln])
        switch {
            case line == ""                       : continue
            case strings.HasPrefix(line, "@")     : if err := self.global(line); err != nil { return err }
            case strings.HasPrefix(line, "define"): if err := self.function(line); err != nil { return err }
            default                               : return self.err("unexpected %q at module level", line)
        }
    }
    return nil
}

// global parses "@name = global [value] : type".
func (self *_Parser) global(line string) error {
    head, tp, ok := splitType(line)
    if !ok {
        return self.err("global without a type")
    }
    gt, ok := ast.ParseType(tp)
    if !ok {
        return self.err("invalid type %q", tp)
    }

    i := strings.Index(head, " = global")
    if i <= 1 {
        return self.err("malformed global %q", line)
    }
    g := &Global { Name: head[1:i], Tp: gt }

    /* optional initializer */
    if val := strings.TrimSpace(head[i + len(" = global"):]); val != "" {
        cv, err := self.constant(val, gt)
        if err != nil {
            return err
        }
        g.Init = &cv
    }
    self.mod.Globals = append(self.mod.Globals, g)
    return nil
}

func (self *_Parser) constant(val string, tp ast.Type) (ConstValue, error) {
    switch tp.Kind {
        case ast.TInt, ast.TChar: {
            v, err := strconv.ParseInt(val, 10, 64)
            if err != nil {
                return ConstValue{}, self.err("invalid integer %q", val)
            }
            return constint(tp, v), nil
        }
        case ast.TFloat: {
            v, err := strconv.ParseFloat(val, 64)
            if err != nil {
                return ConstValue{}, self.err("invalid float %q", val)
            }
            return constfloat(v), nil
        }
        case ast.TBool: {
            v, err := strconv.ParseBool(val)
            if err != nil {
                return ConstValue{}, self.err("invalid bool %q", val)
            }
            return constbool(v), nil
        }
        case ast.TString: {
            v, err := strconv.Unquote(val)
            if err != nil {
                return ConstValue{}, self.err("invalid string %q", val)
            }
            return ConstValue { Tp: ast.String, Str: v }, nil
        }
        default: {
            return ConstValue{}, self.err("type %s takes no initializer", tp)
        }
    }
}

// function parses a whole "define ... { ... }" body.
func (self *_Parser) function(line string) error {
    fn, args, err := self.signature(line)
    if err != nil {
        return err
    }

    /* gather the body up to the closing brace */
    start := self.ln + 1
    end := -1
    for i := start; i < len(self.lines); i++ {
        if strings.TrimSpace(self.lines[i]) == "}" {
            end = i
            break
        }
    }
    if end < 0 {
        return self.err("unterminated function @%s", fn.Name)
    }

    fp := _FuncParser { p: self, fn: fn, blks: make(map[int]*BasicBlock) }
    fp.prescan(self.lines[start:end])
    if err := fp.params(args); err != nil {
        return err
    }
    for self.ln = start; self.ln < end; self.ln++ {
        if err := fp.line(strings.TrimSpace(self.lines[self.ln])); err != nil {
            return err
        }
    }
    self.ln = end

    if err := fp.finish(); err != nil {
        return err
    }
    self.mod.Funcs = append(self.mod.Funcs, fn)
    return nil
}

// signature parses "define @name(%a : tp, ...) : tp {". The parameter list
// is returned unparsed: parameter registers are only minted after prescan
// has reserved the body's numeric identifiers, so a named parameter can
// never alias a register written in numeric form.
func (self *_Parser) signature(line string) (*Function, []string, error) {
    if !strings.HasSuffix(line, "{") {
        return nil, nil, self.err("missing opening brace")
    }
    line = strings.TrimSpace(strings.TrimSuffix(line, "{"))

    head, ret, ok := splitType(line)
    if !ok {
        return nil, nil, self.err("function without a return type")
    }
    rt, ok := ast.ParseType(ret)
    if !ok {
        return nil, nil, self.err("invalid type %q", ret)
    }

    lp := strings.IndexByte(head, '(')
    if !strings.HasPrefix(head, "define @") || lp < 0 || !strings.HasSuffix(head, ")") {
        return nil, nil, self.err("malformed function header %q", line)
    }
    fn := newFunction(head[len("define @"):lp], nil, rt)

    /* split but do not resolve the formal parameters */
    if args := head[lp + 1 : len(head) - 1]; args != "" {
        return fn, strings.Split(args, ","), nil
    }
    return fn, nil, nil
}

// params mints the formal parameter registers, once every numeric register
// of the body is reserved.
func (self *_FuncParser) params(args []string) error {
    for _, a := range args {
        name, tp, ok := splitType(strings.TrimSpace(a))
        if !ok || !strings.HasPrefix(name, "%") {
            return self.p.err("malformed parameter %q", a)
        }
        pt, ok := ast.ParseType(tp)
        if !ok {
            return self.p.err("invalid type %q", tp)
        }
        r, err := self.reg(name)
        if err != nil {
            return err
        }
        self.fn.Params = append(self.fn.Params, Param { Name: name[1:], Tp: pt, R: r })
    }
    return nil
}

// splitType cuts "body : type" at the last " : " separator.
func splitType(s string) (string, string, bool) {
    i := strings.LastIndex(s, " : ")
    if i < 0 {
        return s, "", false
    }
    return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i + 3:]), true
}

type _FuncParser struct {
    p    *_Parser
    fn   *Function
    bb   *BasicBlock
    blks map[int]*BasicBlock
}

// prescan reserves every numeric register of the body before named registers
// mint fresh identifiers, so the two can never collide.
func (self *_FuncParser) prescan(lines []string) {
    for _, line := range lines {
        for _, tok := range _RegToken.FindAllStringSubmatch(line, -1) {
            id, _ := strconv.ParseUint(tok[1], 10, 32)
            ver := uint64(0)
            if tok[2] != "" {
                ver, _ = strconv.ParseUint(tok[2][1:], 10, 32)
            }
            self.fn.reserve(mkreg(uint32(id), uint32(ver)))
        }
    }
}

func (self *_FuncParser) block(id int) *BasicBlock {
    if bb, ok := self.blks[id]; ok {
        return bb
    }
    bb := &BasicBlock { Id: id }
    self.blks[id] = bb
    self.fn.addblock(bb)
    return bb
}

// reg resolves a register token: "%name", "%name.ver", "%id" or "%id.ver".
func (self *_FuncParser) reg(tok string) (Reg, error) {
    if !strings.HasPrefix(tok, "%") || len(tok) == 1 {
        return 0, self.p.err("invalid register %q", tok)
    }

    body := tok[1:]
    ver := uint64(0)
    if i := strings.IndexByte(body, '.'); i >= 0 {
        v, err := strconv.ParseUint(body[i + 1:], 10, 32)
        if err != nil {
            return 0, self.p.err("invalid register version %q", tok)
        }
        ver = v
        body = body[:i]
    }

    /* numeric form */
    if id, err := strconv.ParseUint(body, 10, 32); err == nil {
        r := mkreg(uint32(id), uint32(ver))
        self.fn.reserve(r)
        return r, nil
    }

    /* named form: reuse the identifier if the name is known */
    for id, name := range self.fn.names {
        if name == body {
            r := mkreg(id, uint32(ver))
            self.fn.reserve(r)
            return r, nil
        }
    }
    r := self.fn.newnamed(body).Derive(uint32(ver))
    self.fn.reserve(r)
    return r, nil
}

func (self *_FuncParser) line(line string) error {
    if line == "" {
        return nil
    }

    /* block labels open a new block */
    if strings.HasPrefix(line, "bb_") && strings.HasSuffix(line, ":") {
        id, err := strconv.Atoi(line[3 : len(line) - 1])
        if err != nil {
            return self.p.err("invalid block label %q", line)
        }
        bb := self.block(id)
        if bb.Term != nil || self.bb == bb {
            return self.p.err("duplicate block label %q", line)
        }
        self.bb = bb
        return nil
    }

    if self.bb == nil {
        return self.p.err("instruction before the first block label")
    }
    if self.bb.Term != nil {
        return self.p.err("instruction after the terminator")
    }
    return self.ins(line)
}

func (self *_FuncParser) ins(line string) error {
    /* terminators carry no type annotation except ret */
    switch {
        case strings.HasPrefix(line, "jump ")    : return self.jump(line)
        case strings.HasPrefix(line, "cbranch ") : return self.cbranch(line)
        case line == "ret : void"                : self.bb.Term = &IrReturn { Tp: ast.Void }; return nil
        case strings.HasPrefix(line, "ret ")     : return self.ret(line)
    }

    head, tps, ok := splitType(line)
    if !ok {
        return self.p.err("instruction without a type %q", line)
    }
    tp, ok := ast.ParseType(tps)
    if !ok {
        return self.p.err("invalid type %q", tps)
    }

    /* instructions with no result */
    if !strings.HasPrefix(head, "%") {
        return self.effect(head, tp)
    }

    /* "%r = op ..." */
    eq := strings.Index(head, " = ")
    if eq < 0 {
        return self.p.err("malformed instruction %q", line)
    }
    r, err := self.reg(head[:eq])
    if err != nil {
        return err
    }
    return self.value(r, strings.TrimSpace(head[eq + 3:]), tp)
}

func (self *_FuncParser) jump(line string) error {
    to, err := self.label(strings.TrimSpace(line[len("jump "):]))
    if err != nil {
        return err
    }
    self.bb.Term = &IrBranch { To: to }
    return nil
}

func (self *_FuncParser) cbranch(line string) error {
    args := strings.Split(line[len("cbranch "):], ",")
    if len(args) != 3 {
        return self.p.err("malformed cbranch %q", line)
    }
    v, err := self.reg(strings.TrimSpace(args[0]))
    if err != nil {
        return err
    }
    t, err := self.label(strings.TrimSpace(args[1]))
    if err != nil {
        return err
    }
    f, err := self.label(strings.TrimSpace(args[2]))
    if err != nil {
        return err
    }
    self.bb.Term = &IrBranchIf { V: v, T: t, F: f }
    return nil
}

func (self *_FuncParser) ret(line string) error {
    head, tps, ok := splitType(line)
    if !ok {
        return self.p.err("malformed ret %q", line)
    }
    tp, ok := ast.ParseType(tps)
    if !ok {
        return self.p.err("invalid type %q", tps)
    }
    v, err := self.reg(strings.TrimSpace(head[len("ret "):]))
    if err != nil {
        return err
    }
    self.bb.Term = &IrReturn { V: v, Tp: tp }
    return nil
}

func (self *_FuncParser) label(tok string) (*BasicBlock, error) {
    if !strings.HasPrefix(tok, "bb_") {
        return nil, self.p.err("invalid block reference %q", tok)
    }
    id, err := strconv.Atoi(tok[3:])
    if err != nil {
        return nil, self.p.err("invalid block reference %q", tok)
    }
    return self.block(id), nil
}

// effect parses the result-less instructions: store, print, read and void
// calls.
func (self *_FuncParser) effect(head string, tp ast.Type) error {
    switch {
        case head == "print": {
            self.bb.Ins = append(self.bb.Ins, &IrPrint { Tp: ast.Void })
            return nil
        }
        case strings.HasPrefix(head, "print "): {
            v, err := self.reg(strings.TrimSpace(head[len("print "):]))
            if err != nil {
                return err
            }
            self.bb.Ins = append(self.bb.Ins, &IrPrint { V: v, Tp: tp })
            return nil
        }
        case strings.HasPrefix(head, "read "): {
            m, err := self.reg(strings.TrimSpace(head[len("read "):]))
            if err != nil {
                return err
            }
            self.bb.Ins = append(self.bb.Ins, &IrRead { Mem: m, Tp: tp })
            return nil
        }
        case strings.HasPrefix(head, "store "): {
            args := strings.Split(head[len("store "):], ",")
            if len(args) != 2 {
                return self.p.err("malformed store %q", head)
            }
            v, err := self.reg(strings.TrimSpace(args[0]))
            if err != nil {
                return err
            }
            m, err := self.reg(strings.TrimSpace(args[1]))
            if err != nil {
                return err
            }
            self.bb.Ins = append(self.bb.Ins, &IrStore { V: v, Mem: m, Tp: tp })
            return nil
        }
        case strings.HasPrefix(head, "call "): {
            return self.call(0, head, tp)
        }
        default: {
            return self.p.err("unknown instruction %q", head)
        }
    }
}

func (self *_FuncParser) call(r Reg, head string, tp ast.Type) error {
    args := strings.Split(head[len("call "):], ",")
    if !strings.HasPrefix(strings.TrimSpace(args[0]), "@") {
        return self.p.err("malformed call %q", head)
    }

    call := &IrCall { R: r, Fn: strings.TrimSpace(args[0])[1:], Tp: tp }
    for _, a := range args[1:] {
        v, err := self.reg(strings.TrimSpace(a))
        if err != nil {
            return err
        }
        call.In = append(call.In, v)
    }
    self.bb.Ins = append(self.bb.Ins, call)
    return nil
}

// value parses the instructions of the form "%r = op ... : tp".
func (self *_FuncParser) value(r Reg, rhs string, tp ast.Type) error {
    op := rhs
    rest := ""
    if i := strings.IndexByte(rhs, ' '); i >= 0 {
        op, rest = rhs[:i], strings.TrimSpace(rhs[i + 1:])
    }

    switch op {
        case "alloc": {
            self.bb.Ins = append(self.bb.Ins, &IrAlloc { R: r, Tp: tp })
            return nil
        }
        case "undef": {
            self.bb.Ins = append(self.bb.Ins, &IrUndef { R: r, Tp: tp })
            return nil
        }
        case "load": {
            m, err := self.reg(rest)
            if err != nil {
                return err
            }
            self.bb.Ins = append(self.bb.Ins, &IrLoad { R: r, Mem: m, Tp: tp })
            return nil
        }
        case "literal": {
            return self.literal(r, rest, tp)
        }
        case "addr": {
            if !strings.HasPrefix(rest, "@") {
                return self.p.err("malformed addr %q", rhs)
            }
            self.bb.Ins = append(self.bb.Ins, &IrGlobalAddr { R: r, Name: rest[1:], Tp: tp })
            return nil
        }
        case "elem": {
            m, off, err := self.regpair(rest)
            if err != nil {
                return err
            }
            self.bb.Ins = append(self.bb.Ins, &IrIndex { R: r, Mem: m, Off: off, Tp: tp })
            return nil
        }
        case "neg", "not": {
            v, err := self.reg(rest)
            if err != nil {
                return err
            }
            uop := IrOpNegate
            if op == "not" {
                uop = IrOpNot
            }
            self.bb.Ins = append(self.bb.Ins, &IrUnaryExpr { R: r, V: v, Op: uop, Tp: tp })
            return nil
        }
        case "sitofp", "fptosi": {
            v, err := self.reg(rest)
            if err != nil {
                return err
            }
            cop := IrOpSiToFp
            if op == "fptosi" {
                cop = IrOpFpToSi
            }
            self.bb.Ins = append(self.bb.Ins, &IrConvert { R: r, V: v, Op: cop })
            return nil
        }
        case "call": {
            return self.call(r, rhs, tp)
        }
        case "phi": {
            return self.phi(r, rest, tp)
        }
    }

    if bop, ok := _BinaryByName[op]; ok {
        x, y, err := self.regpair(rest)
        if err != nil {
            return err
        }
        self.bb.Ins = append(self.bb.Ins, &IrBinaryExpr { R: r, X: x, Y: y, Op: bop, Tp: tp })
        return nil
    }
    return self.p.err("unknown instruction %q", rhs)
}

func (self *_FuncParser) regpair(s string) (Reg, Reg, error) {
    args := strings.Split(s, ",")
    if len(args) != 2 {
        return 0, 0, self.p.err("expected two operands in %q", s)
    }
    x, err := self.reg(strings.TrimSpace(args[0]))
    if err != nil {
        return 0, 0, err
    }
    y, err := self.reg(strings.TrimSpace(args[1]))
    if err != nil {
        return 0, 0, err
    }
    return x, y, nil
}

func (self *_FuncParser) literal(r Reg, val string, tp ast.Type) error {
    cv, err := self.p.constant(val, tp)
    if err != nil {
        return err
    }
    switch tp.Kind {
        case ast.TInt, ast.TChar : self.bb.Ins = append(self.bb.Ins, &IrConstInt { R: r, V: cv.Int, Tp: tp })
        case ast.TFloat          : self.bb.Ins = append(self.bb.Ins, &IrConstFloat { R: r, V: cv.Float })
        case ast.TBool           : self.bb.Ins = append(self.bb.Ins, &IrConstBool { R: r, V: cv.Bool })
        default                  : return self.p.err("invalid literal type %s", tp)
    }
    return nil
}

// phi parses "(%v, bb_N), (%w, bb_M)".
func (self *_FuncParser) phi(r Reg, rest string, tp ast.Type) error {
    if len(self.bb.Ins) != 0 {
        return self.p.err("phi after the first non-phi instruction")
    }

    phi := &IrPhi { R: r, V: make(map[*BasicBlock]*Reg), Tp: tp }
    for rest != "" {
        if !strings.HasPrefix(rest, "(") {
            return self.p.err("malformed phi operand %q", rest)
        }
        i := strings.IndexByte(rest, ')')
        if i < 0 {
            return self.p.err("malformed phi operand %q", rest)
        }

        pair := strings.Split(rest[1:i], ",")
        if len(pair) != 2 {
            return self.p.err("malformed phi operand %q", rest[:i + 1])
        }
        v, err := self.reg(strings.TrimSpace(pair[0]))
        if err != nil {
            return err
        }
        from, err := self.label(strings.TrimSpace(pair[1]))
        if err != nil {
            return err
        }
        phi.V[from] = regnewref(v)

        rest = strings.TrimSpace(rest[i + 1:])
        rest = strings.TrimSpace(strings.TrimPrefix(rest, ","))
    }
    self.bb.Phi = append(self.bb.Phi, phi)
    return nil
}

// finish validates the parsed body and attaches the graph to the function.
// The first labeled block is the entry.
func (self *_FuncParser) finish() error {
    if len(self.fn.all) == 0 {
        return self.p.err("function @%s has no blocks", self.fn.Name)
    }
    for _, bb := range self.fn.all {
        if bb.Term == nil {
            return &StructuralError { Func: self.fn.Name, Block: bb.Id, Msg: "block is not terminated" }
        }
    }
    self.fn.CFG = newCFG(self.fn.all[0])
    self.fn.CFG.Rebuild()
    return nil
}

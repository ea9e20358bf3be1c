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
    `sort`

    `github.com/oleiade/lane`
)

// BasicBlock is a maximal straight-line run of instructions with phi nodes at
// the entry and exactly one terminator at the end. Successors are always
// derived from the terminator; predecessors are derived data recomputed by
// CFG.Rebuild after every structural edit.
type BasicBlock struct {
    Id   int
    Phi  []*IrPhi
    Ins  []IrNode
    Pred []*BasicBlock
    Term IrTerminator
}

func (self *BasicBlock) termBranch(to *BasicBlock) {
    self.Term = &IrBranch { To: to }
}

func (self *BasicBlock) termCondition(v Reg, t *BasicBlock, f *BasicBlock) {
    self.Term = &IrBranchIf { V: v, T: t, F: f }
}

type CFG struct {
    Root              *BasicBlock
    DominatedBy       map[int]*BasicBlock
    DominatorOf       map[int][]*BasicBlock
    DominanceFrontier map[int][]*BasicBlock
}

func newCFG(root *BasicBlock) *CFG {
    return &CFG {
        Root              : root,
        DominatedBy       : make(map[int]*BasicBlock),
        DominatorOf       : make(map[int][]*BasicBlock),
        DominanceFrontier : make(map[int][]*BasicBlock),
    }
}

// Rebuild recomputes predecessor lists, the dominator tree and dominance
// frontiers from the terminators alone. Every structural edit must be
// followed by a Rebuild before any pass consults dominance information.
func (self *CFG) Rebuild() {
    q := lane.NewQueue()
    v := make(map[int]*BasicBlock)

    /* locate every reachable block, clearing stale predecessors */
    for q.Enqueue(self.Root); !q.Empty(); {
        p := q.Dequeue().(*BasicBlock)
        p.Pred = p.Pred[:0]

        /* add unvisited successors */
        for _, b := range p.Term.Successors() {
            if _, ok := v[b.Id]; !ok {
                v[b.Id] = b
                q.Enqueue(b)
            }
        }
        v[p.Id] = p
    }

    /* derive the predecessor lists */
    for q.Enqueue(self.Root); !q.Empty(); {
        p := q.Dequeue().(*BasicBlock)
        delete(v, p.Id)

        /* add this block to each successor */
        for _, b := range p.Term.Successors() {
            b.Pred = append(b.Pred, p)
            if _, ok := v[b.Id]; ok {
                delete(v, b.Id)
                q.Enqueue(b)
            }
        }
    }

    /* drop phi operands that refer to removed edges */
    for _, bb := range self.Blocks() {
        for _, phi := range bb.Phi {
            for from := range phi.V {
                if !blockin(bb.Pred, from) {
                    delete(phi.V, from)
                }
            }
        }
    }

    /* recompute the dominator tree and the dominance frontiers */
    dt := buildDominatorTree(self.Root)
    self.DominatedBy = dt.DominatedBy
    self.DominatorOf = dt.DominatorOf
    self.DominanceFrontier = computeDominanceFrontier(self)
}

// ReversePostOrder visits every reachable block in reverse post-order of the
// CFG edges, so each block is visited before its successors on acyclic paths.
func (self *CFG) ReversePostOrder(action func(bb *BasicBlock)) {
    for _, bb := range self.Blocks() {
        action(bb)
    }
}

// Blocks returns every reachable block in reverse post-order. The order is
// deterministic for a fixed graph and is the canonical listing order.
func (self *CFG) Blocks() []*BasicBlock {
    var ret []*BasicBlock
    vis := make(map[int]struct{})

    /* post-order DFS over the successor edges */
    var dfs func(bb *BasicBlock)
    dfs = func(bb *BasicBlock) {
        vis[bb.Id] = struct{}{}
        for _, p := range bb.Term.Successors() {
            if _, ok := vis[p.Id]; !ok {
                dfs(p)
            }
        }
        ret = append(ret, bb)
    }

    /* reverse the post-order */
    dfs(self.Root)
    blockreverse(ret)
    return ret
}

// PostOrder iterates the dominator tree in post-order: every block is visited
// after all blocks it dominates.
func (self *CFG) PostOrder() *BasicBlockIter {
    return newBasicBlockIter(self)
}

type BasicBlockIter struct {
    g *CFG
    b *BasicBlock
    s *lane.Stack
    v map[int]struct{}
}

func newBasicBlockIter(cfg *CFG) *BasicBlockIter {
    s := lane.NewStack()
    s.Push(cfg.Root)
    return &BasicBlockIter {
        g: cfg,
        s: s,
        v: map[int]struct{} { cfg.Root.Id: {} },
    }
}

func (self *BasicBlockIter) Next() bool {
    var tail bool
    var this *BasicBlock

    /* scan until the stack is empty */
    for !self.s.Empty() {
        tail = true
        this = self.s.Head().(*BasicBlock)

        /* descend into the first unvisited child */
        for _, p := range self.g.DominatorOf[this.Id] {
            if _, ok := self.v[p.Id]; !ok {
                tail = false
                self.v[p.Id] = struct{}{}
                self.s.Push(p)
                break
            }
        }

        /* all the children are visited, pop the current node */
        if tail {
            self.b = self.s.Pop().(*BasicBlock)
            return true
        }
    }

    /* clear the basic block pointer to indicate no more blocks */
    self.b = nil
    return false
}

func (self *BasicBlockIter) Block() *BasicBlock {
    return self.b
}

func (self *BasicBlockIter) ForEach(action func(bb *BasicBlock)) {
    for self.Next() {
        action(self.b)
    }
}

// computeDominanceFrontier derives DF(b) for every reachable block, bottom-up
// over the dominator tree: a block takes every CFG successor it does not
// immediately dominate, plus its children's frontier entries that it does not
// immediately dominate either.
func computeDominanceFrontier(cfg *CFG) map[int][]*BasicBlock {
    df := make(map[int][]*BasicBlock)
    mm := make(map[int]map[int]*BasicBlock)

    /* post-order guarantees every child's frontier is ready first */
    cfg.PostOrder().ForEach(func(bb *BasicBlock) {
        s := make(map[int]*BasicBlock)

        /* local contribution */
        for _, y := range bb.Term.Successors() {
            if cfg.DominatedBy[y.Id] != bb {
                s[y.Id] = y
            }
        }

        /* inherited contribution */
        for _, z := range cfg.DominatorOf[bb.Id] {
            for _, y := range mm[z.Id] {
                if cfg.DominatedBy[y.Id] != bb {
                    s[y.Id] = y
                }
            }
        }
        mm[bb.Id] = s
    })

    /* flatten each frontier, sorted by block ID for determinism */
    for id, s := range mm {
        if len(s) == 0 {
            continue
        }
        v := make([]*BasicBlock, 0, len(s))
        for _, y := range s {
            v = append(v, y)
        }
        sort.Slice(v, func(i int, j int) bool {
            return v[i].Id < v[j].Id
        })
        df[id] = v
    }
    return df
}

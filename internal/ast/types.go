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

package ast

import (
    `fmt`
)

type TypeKind uint8

const (
    TVoid TypeKind = iota
    TInt
    TFloat
    TChar
    TBool
    TString
    TArray
)

// Type describes a checked uC type. Scalars are represented by their kind
// alone, arrays carry the element type and a length.
type Type struct {
    Kind TypeKind
    Elem *Type
    Len  int
}

var (
    Void   = Type { Kind: TVoid }
    Int    = Type { Kind: TInt }
    Float  = Type { Kind: TFloat }
    Char   = Type { Kind: TChar }
    Bool   = Type { Kind: TBool }
    String = Type { Kind: TString }
)

func ArrayOf(elem Type, n int) Type {
    p := new(Type)
    *p = elem
    return Type { Kind: TArray, Elem: p, Len: n }
}

// Scalar reports whether a value of this type fits a single virtual register.
func (self Type) Scalar() bool {
    switch self.Kind {
        case TInt, TFloat, TChar, TBool : return true
        default                         : return false
    }
}

func (self Type) String() string {
    switch self.Kind {
        case TVoid   : return "void"
        case TInt    : return "int"
        case TFloat  : return "float"
        case TChar   : return "char"
        case TBool   : return "bool"
        case TString : return "string"
        case TArray  : return fmt.Sprintf("%s[%d]", self.Elem, self.Len)
        default      : panic("ast: invalid type kind")
    }
}

// ParseType is the inverse of Type.String, used by the uCIR text parser.
func ParseType(s string) (Type, bool) {
    switch s {
        case "void"   : return Void, true
        case "int"    : return Int, true
        case "float"  : return Float, true
        case "char"   : return Char, true
        case "bool"   : return Bool, true
        case "string" : return String, true
    }

    /* the only remaining form is elem[len] */
    i := -1
    for p, c := range s {
        if c == '[' {
            i = p
            break
        }
    }

    /* no opening bracket or no closing bracket */
    if i < 0 || s[len(s) - 1] != ']' {
        return Void, false
    }

    /* parse the element type */
    elem, ok := ParseType(s[:i])
    if !ok {
        return Void, false
    }

    /* parse the length */
    n := 0
    for _, c := range s[i + 1 : len(s) - 1] {
        if c < '0' || c > '9' {
            return Void, false
        } else {
            n = n * 10 + int(c - '0')
        }
    }
    return ArrayOf(elem, n), true
}

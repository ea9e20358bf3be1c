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

package main

import (
    `fmt`
    `io`
    `os`
    `path/filepath`
    `strings`

    `github.com/davecgh/go-spew/spew`
    `github.com/spf13/cobra`
    `github.com/ucclang/ucc/internal/qbe`
    `github.com/ucclang/ucc/internal/ssa`
)

var version = "0.1.0"

type options struct {
    noConstProp bool
    noDeadCode  bool
    noSimplify  bool
    maxRounds   int
    dumpIR      bool
    debug       bool
    emit        string
    output      string
}

func main() {
    if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
        os.Exit(1)
    }
}

func newRootCmd(out io.Writer, errOut io.Writer) *cobra.Command {
    var opts options

    rootCmd := &cobra.Command {
        Use           : "ucc [flags] file.ir",
        Short         : "ucc optimizes uCIR modules and lowers them to QBE IL",
        Version       : version,
        Args          : cobra.ExactArgs(1),
        SilenceUsage  : true,
        SilenceErrors : true,
        RunE: func(cmd *cobra.Command, args []string) error {
            if err := run(out, errOut, args[0], opts); err != nil {
                fmt.Fprintf(errOut, "ucc: error: %v\n", err)
                return err
            }
            return nil
        },
    }

    rootCmd.Flags().BoolVar(&opts.noConstProp, "no-constprop", false, "Disable constant propagation")
    rootCmd.Flags().BoolVar(&opts.noDeadCode, "no-deadcode", false, "Disable dead code elimination")
    rootCmd.Flags().BoolVar(&opts.noSimplify, "no-simplify", false, "Disable control flow simplification")
    rootCmd.Flags().IntVar(&opts.maxRounds, "max-rounds", ssa.DefaultMaxRounds, "Bound on optimization rounds per function")
    rootCmd.Flags().BoolVar(&opts.dumpIR, "dump-ir", false, "Dump the IR after every pass that changes it")
    rootCmd.Flags().BoolVar(&opts.debug, "debug", false, "Dump the in-memory module structure after optimization")
    rootCmd.Flags().StringVar(&opts.emit, "emit", "ir", "Output format: ir or qbe")
    rootCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default stdout)")
    return rootCmd
}

func run(out io.Writer, errOut io.Writer, path string, opts options) error {
    if opts.emit != "ir" && opts.emit != "qbe" {
        return fmt.Errorf("unknown output format %q", opts.emit)
    }

    src, err := os.ReadFile(path)
    if err != nil {
        return err
    }

    name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
    mod, err := ssa.ParseModule(name, string(src))
    if err != nil {
        return err
    }

    o := ssa.Options {
        ConstProp : !opts.noConstProp,
        DeadCode  : !opts.noDeadCode,
        Simplify  : !opts.noSimplify,
        MaxRounds : opts.maxRounds,
    }
    if opts.dumpIR {
        o.Dump = errOut
    }

    warns, err := ssa.Optimize(mod, o)
    for _, w := range warns {
        fmt.Fprintf(errOut, "ucc: warning: %v\n", w)
    }
    if err != nil {
        return err
    }
    if opts.debug {
        spew.Fdump(errOut, mod)
    }

    text := ""
    if opts.emit == "qbe" {
        if text, err = qbe.EmitModule(mod); err != nil {
            return err
        }
    } else {
        text = ssa.FormatModule(mod)
    }

    if opts.output == "" || opts.output == "-" {
        _, err = io.WriteString(out, text)
        return err
    }
    return os.WriteFile(opts.output, []byte(text), 0644)
}

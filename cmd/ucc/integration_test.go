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
    `bytes`
    `os`
    `path/filepath`
    `strings`
    `testing`

    `github.com/stretchr/testify/require`
    `gopkg.in/yaml.v3`
)

type testCase struct {
    Name    string   `yaml:"name"`
    Emit    string   `yaml:"emit"`
    Input   string   `yaml:"input"`
    Want    []string `yaml:"want"`
    WantNot []string `yaml:"wantnot"`
}

type testSuite struct {
    Cases []testCase `yaml:"cases"`
}

func loadCases(t *testing.T) []testCase {
    data, err := os.ReadFile(filepath.Join("testdata", "cases.yaml"))
    require.NoError(t, err)

    var suite testSuite
    require.NoError(t, yaml.Unmarshal(data, &suite))
    require.NotEmpty(t, suite.Cases)
    return suite.Cases
}

func TestPipeline(t *testing.T) {
    for _, tc := range loadCases(t) {
        t.Run(tc.Name, func(t *testing.T) {
            path := filepath.Join(t.TempDir(), tc.Name + ".ir")
            require.NoError(t, os.WriteFile(path, []byte(tc.Input), 0644))

            var out, errOut bytes.Buffer
            opts := options { emit: tc.Emit, maxRounds: 32 }
            require.NoError(t, run(&out, &errOut, path, opts))

            for _, w := range tc.Want {
                require.Containsf(t, out.String(), w, "missing %q in:\n%s", w, out.String())
            }
            for _, w := range tc.WantNot {
                require.NotContainsf(t, out.String(), w, "unexpected %q in:\n%s", w, out.String())
            }
        })
    }
}

func TestCLI_Flags(t *testing.T) {
    src := `
define @f() : int {
bb_0:
    %1 = literal 2 : int
    %2 = literal 3 : int
    %3 = add %1, %2 : int
    ret %3 : int
}
`
    path := filepath.Join(t.TempDir(), "f.ir")
    require.NoError(t, os.WriteFile(path, []byte(src), 0644))

    /* with constant propagation off the add must survive */
    var out, errOut bytes.Buffer
    cmd := newRootCmd(&out, &errOut)
    cmd.SetArgs([]string { "--no-constprop", path })
    require.NoError(t, cmd.Execute())
    require.Contains(t, out.String(), "add")

    /* and with everything on it must fold */
    out.Reset()
    cmd = newRootCmd(&out, &errOut)
    cmd.SetArgs([]string { path })
    require.NoError(t, cmd.Execute())
    require.NotContains(t, out.String(), "add")
}

func TestCLI_OutputFile(t *testing.T) {
    src := `
define @f() : void {
bb_0:
    ret : void
}
`
    dir := t.TempDir()
    in := filepath.Join(dir, "f.ir")
    outfile := filepath.Join(dir, "f.qbe")
    require.NoError(t, os.WriteFile(in, []byte(src), 0644))

    var out, errOut bytes.Buffer
    cmd := newRootCmd(&out, &errOut)
    cmd.SetArgs([]string { "--emit", "qbe", "-o", outfile, in })
    require.NoError(t, cmd.Execute())

    data, err := os.ReadFile(outfile)
    require.NoError(t, err)
    require.Contains(t, string(data), "export function $f()")
}

func TestCLI_Errors(t *testing.T) {
    t.Run("missing file", func(t *testing.T) {
        var out, errOut bytes.Buffer
        cmd := newRootCmd(&out, &errOut)
        cmd.SetArgs([]string { filepath.Join(t.TempDir(), "nope.ir") })
        require.Error(t, cmd.Execute())
    })

    t.Run("bad format", func(t *testing.T) {
        path := filepath.Join(t.TempDir(), "f.ir")
        require.NoError(t, os.WriteFile(path, []byte("define @f() : void {\nbb_0:\n    ret : void\n}\n"), 0644))

        var out, errOut bytes.Buffer
        cmd := newRootCmd(&out, &errOut)
        cmd.SetArgs([]string { "--emit", "elf", path })
        require.Error(t, cmd.Execute())
    })

    t.Run("malformed ir", func(t *testing.T) {
        path := filepath.Join(t.TempDir(), "f.ir")
        require.NoError(t, os.WriteFile(path, []byte("define @f() : void {\nbb_0:\n}\n"), 0644))

        var out, errOut bytes.Buffer
        cmd := newRootCmd(&out, &errOut)
        cmd.SetArgs([]string { path })
        err := cmd.Execute()
        require.Error(t, err)
        require.True(t, strings.Contains(errOut.String(), "structural error") || strings.Contains(err.Error(), "structural error"))
    })
}

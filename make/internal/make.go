package main

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/gen2brain/beeep"
	. "github.com/storozhukBM/build"
)

const coverageName = `coverage.out`
const cliToolName = `arenactl`
const binDirName = `bin`
const benchTrace = `bench.trace`

var parallelism = strconv.Itoa(runtime.NumCPU() * 4)

var b = NewBuild(BuildOptions{})
var golangciLint = linter{name: `golangci-lint`, version: `v1.55.2`, binDir: binDirName}
var commands = []Command{
	{Name: `build`, Body: b.RunCmd(Go, `build`, `./...`)},

	{Name: `buildInlineBounds`, Body: b.ShRunCmd(
		Go, `build`, `-gcflags='-m -d=ssa/check_bce/debug=1'`, `./lib/arena/...`,
	)},

	{Name: `buildCli`, Body: buildCli},
	{Name: `clean`, Body: clean},
	{Name: `cleanAll`, Body: func() { clean(); cleanExecutables() }},
	{Name: `test`, Body: func() { testLib(); notify(`test`) }},
	{Name: `testRace`, Body: b.RunCmd(Go, `test`, `-race`, `./lib/...`)},
	{Name: `bench`, Body: b.RunCmd(Go, `test`, `-run=^$`, `-bench=.`, `-benchmem`, `./lib/arena/...`)},
	{Name: `replaySynthetic`, Body: replaySynthetic},

	{Name: `lint`, Body: func() { cilint(); notify(`lint`) }},

	{Name: `coverage`, Body: func() {
		clean()
		b.Run(
			Go, `test`, `-coverpkg=./...`, `-coverprofile=`+coverageName,
			`./lib/...`, `./cmd/...`,
		)
		b.Run(Go, `tool`, `cover`, `-html=`+coverageName)
	}},
}

func testLib() {
	defer forceClean()
	b.Run(Go, `test`, `-parallel`, parallelism, `./lib/...`, `./cmd/...`)
}

func buildCli() {
	b.Run(Go, `build`, `-o`, filepath.Join(binDirName, cliToolName), `./cmd/arenactl`)
}

func replaySynthetic() {
	defer forceClean()
	buildCli()
	executable := filepath.Join(binDirName, cliToolName)
	b.Run(executable, `synth`, `--events`, `100000`, `--seed`, `1`, `--out`, benchTrace)
	b.Run(executable, `replay`, `--pool-size`, `65536`, benchTrace)
	notify(`replaySynthetic`)
}

func notify(target string) {
	// desktop notifications are best effort, headless machines just don't get them
	_ = beeep.Notify(`hookarena`, fmt.Sprintf("target `%v` finished", target), ``)
}

func clean() {
	b.Once(`cleanOnce`, func() { forceClean() })
}

func forceClean() {
	b.Run(Go, `clean`, `./...`)
	b.Run(`rm`, `-f`, coverageName)
	b.Run(`rm`, `-f`, benchTrace)
}

func cleanExecutables() {
	b.Run(`rm`, `-rf`, binDirName)
}

func cilint() {
	executable, installErr := golangciLint.install()
	if installErr != nil {
		b.AddError(installErr)
		return
	}
	b.Run(executable, `-j`, parallelism, `run`)
}

func main() {
	b.Register(commands)
	b.BuildFromOsArgs()
}

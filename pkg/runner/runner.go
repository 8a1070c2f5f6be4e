// Package runner provides the process lifecycle: banner, start hooks,
// signal-driven shutdown, and a bounded drain.
package runner

import (
	"bytes"
	"os"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

type Hooks struct {
	OnStart func()
	OnStop  func()
}

// Drainer is anything that can finish in-flight work before the process
// exits; the relay's application implements it by closing live sessions.
type Drainer interface {
	Drain() error
}

const Version = "dev"

func PrintBanner() {
	tpl := "{{ .Title \"NEVRA\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

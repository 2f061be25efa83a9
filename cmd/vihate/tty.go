package main

import "os"

// Seams for tests.
var (
	stdinIsTTY  = func() bool { return isTerminal(os.Stdin) }
	stderrIsTTY = func() bool { return isTerminal(os.Stderr) }
)

// motorseq drives timed run/stop sequences on a motor controller through
// its debug link. Without a subcommand it opens the GUI; `motorseq run`
// executes one sequence headless.
package main

func main() {
	Execute()
}

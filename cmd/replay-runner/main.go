// Command replay-runner replays recorded UI test cases.
package main

import "github.com/devicelab-dev/replay-runner/pkg/cli"

func main() {
	cli.Execute()
}

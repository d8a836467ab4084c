// Command workbench browses, edits, runs, and exports scripted QA test cases.
package main

import "github.com/mesh-intelligence/workbench/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/rzbill/subrelay/pkg/cli/cmd"

func main() {
	cmd.Execute()
}

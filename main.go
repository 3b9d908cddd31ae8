package main

import "github.com/KaramelBytes/tabstep-cli/cmd"

func main() {
	cmd.Execute()
}

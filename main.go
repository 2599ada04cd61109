package main

import "github.com/sw33tLie/statscope/cmd"

func main() {
	cmd.Execute()
}

package main

import "gemwallet/cmd/gem-cli/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/ftl/replayscope/cmd"

func main() {
	cmd.Execute()
}

package main

import "auto-highlight/cmd"

func main() {
	cmd.Execute()
}

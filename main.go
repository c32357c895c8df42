package main

import "projectdw/cmd"

func main() {
	cmd.Execute()
}

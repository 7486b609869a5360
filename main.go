package main

import "studiopipe/cmd"

func main() {
	cmd.Execute()
}

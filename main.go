package main

import "github.com/jrcall/jrcall/cmd"

func main() {
	cmd.Execute()
}

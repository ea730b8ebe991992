package main

import "github.com/crossvenue/arbscan/cmd"

func main() {
	cmd.Execute()
}

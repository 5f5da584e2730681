package main

import "github.com/packdir/packdir/cmd/packdir/cmd"

func main() {
	cmd.Execute()
}

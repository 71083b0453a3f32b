package main

import "github.com/kozaktomas/face-migrator/cmd"

func main() {
	cmd.Execute()
}

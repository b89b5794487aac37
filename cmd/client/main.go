package main

import "ezycv/cmd/client/cmd"

func main() {
	cmd.Execute()
}

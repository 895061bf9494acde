package main

import "github.com/fleetobserver/fleetobserver/cmd"

func main() {
	cmd.Execute()
}

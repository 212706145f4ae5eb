package main

import "fbzone/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/jmcleod/stopit/cmd/stopit/cmd"

func main() {
	cmd.Execute()
}

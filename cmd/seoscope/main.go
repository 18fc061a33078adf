package main

import "github.com/seoscope/crawler/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/example/stay-scheduler/cmd"

func main() {
	cmd.Execute()
}

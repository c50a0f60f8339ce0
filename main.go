package main

import "github.com/memories-social/apiserver/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/cmuxiao/deepchat/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/Norgate-AV/packstream/cmd"

func main() {
	cmd.Execute()
}

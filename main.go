package main

import "github.com/tesh254/gemd/cmd"

func main() {
	cmd.Execute()
}

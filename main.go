package main

import "github.com/ValentinKolb/xtrl/cmd"

func main() {
	cmd.Execute()
}

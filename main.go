package main

import "github.com/ValentinKolb/memDB/cmd"

func main() {
	cmd.Execute()
}

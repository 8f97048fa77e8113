package main

import "github.com/ValentinKolb/memKV/cmd"

func main() {
	cmd.Execute()
}

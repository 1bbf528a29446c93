package main

import "github.com/classmark/classmark/cmd"

func main() {
	cmd.Execute()
}

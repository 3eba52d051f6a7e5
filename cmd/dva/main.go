package main

import "devassist/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/ridoystarlord/casemigrate/cmd"

func main() {
	cmd.Execute()
}

package main

import "clementus360/clinic-assistant/cmd"

func main() {
	cmd.Execute()
}

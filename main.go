package main

import "github.com/mizuhashi/packetflow/cmd"

func main() {
	cmd.Execute()
}

package main

import "saltyrtc/cmd/saltychat/commands"

func main() {
	commands.Execute()
}

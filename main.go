package main

import "github.com/lenormf/vk-chat/cmd"

func main() {
	cmd.Execute()
}

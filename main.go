package main

import "group-media-backend/cmd"

func main() {
	cmd.Run()
}

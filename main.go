package main

import "github.com/skelcrypto/skelbot/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/NamanBalaji/bsfetch/cmd"

func main() {
	cmd.Execute()
}

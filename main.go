package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/jacobshu/forum/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

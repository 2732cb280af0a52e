// Package main provides the entry point for the Erika chat bot.
package main

import "os"

func main() {
	os.Exit(Execute(os.Args[1:]))
}

// Package main is the entry point for the retrotoast command.
package main

func main() {
	Execute()
}

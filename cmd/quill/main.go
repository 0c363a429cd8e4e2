// Package main is the entry point for Quill.
package main

func main() {
	Execute()
}

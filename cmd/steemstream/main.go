package main

import "github.com/vietddude/steemstream/internal/cli"

func main() {
	cli.Execute()
}

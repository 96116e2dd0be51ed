package main

import (
	"github.com/goshell/gosh/cmd"
)

func main() {
	cmd.Execute()
}

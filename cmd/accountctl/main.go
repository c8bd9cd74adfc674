package main

import "github.com/mcoot/accountsvc/internal/cli"

func main() {
	cli.Execute()
}

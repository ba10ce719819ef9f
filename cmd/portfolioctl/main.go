package main

import "portfolio.admin/internal/cli"

func main() {
	cli.Execute()
}

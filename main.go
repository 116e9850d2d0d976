package main

import "catalog-sync/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/ucdmtools/recon/cmd"

func main() {
	cmd.Execute()
}

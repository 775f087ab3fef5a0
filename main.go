package main

import "github.com/camden-git/facesys/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/soulsift/soulsift/internal/client/cmd"

func main() {
	cmd.Execute()
}

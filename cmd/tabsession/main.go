package main

import "github.com/GriffinCanCode/tabsession/internal/cli"

func main() {
	cli.Execute()
}

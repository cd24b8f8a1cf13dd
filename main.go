package main

import (
	_ "time/tzdata"

	"github.com/Glassolution/berry/cmd"
)

func main() {
	cmd.Execute()
}

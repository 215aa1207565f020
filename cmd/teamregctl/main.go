package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/teamreg/internal/app/ctl"
)

func main() {
	if err := ctl.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "teamregctl:", err)
		os.Exit(1)
	}
}

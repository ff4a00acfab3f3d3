// Package main is the entry point for the agriqa service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/agriqa/cmd/agriqa/app"
)

func main() {
	app.NewApp().Run()
}

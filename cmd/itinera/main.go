package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"itinera/internal/cli"
	"itinera/internal/logger"
)

var CLI struct {
	Version  kong.VersionFlag
	Server   string `help:"Itinera API base URL; plans in-process when empty." env:"ITINERA_SERVER" placeholder:"URL"`
	LogLevel string `help:"Log level." default:"warn" enum:"debug,info,warn,error"`

	Generate cli.GenerateCmd `cmd:"" help:"Plan one trip, printing days as they arrive."`
	Batch    cli.BatchCmd    `cmd:"" help:"Plan several trips from a JSON file."`
	List     cli.ListCmd     `cmd:"" help:"List saved itineraries."`
	Show     cli.ShowCmd     `cmd:"" help:"Show a saved itinerary."`
	Export   cli.ExportCmd   `cmd:"" help:"Export a saved itinerary as iCalendar."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("itinera"),
		kong.Description("AI travel itinerary planner"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	if err := logger.Init(logger.Config{Level: CLI.LogLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := ctx.Run(&cli.Context{Ctx: runCtx, Out: os.Stdout, Server: CLI.Server})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

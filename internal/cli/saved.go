package cli

import (
	"fmt"
	"os"
	"time"

	"itinera/internal/export"
)

type ListCmd struct {
	Limit int `help:"Maximum number of itineraries." default:"20"`
}

func (c *ListCmd) Run(ctx *Context) error {
	api, err := ctx.client()
	if err != nil {
		return err
	}
	items, err := api.List(ctx.Ctx, c.Limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(ctx.Out, "No saved itineraries")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(ctx.Out, "%s  %-30s  %s\n", it.ID, it.Title, mutedStyle.Render(it.CreatedAt.Format(time.DateOnly)))
	}
	return nil
}

type ShowCmd struct {
	ID string `arg:"" help:"Saved itinerary id."`
}

func (c *ShowCmd) Run(ctx *Context) error {
	api, err := ctx.client()
	if err != nil {
		return err
	}
	saved, err := api.Get(ctx.Ctx, c.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, titleStyle.Render(saved.Title))
	fmt.Fprint(ctx.Out, renderDocument(saved.Itinerary))
	return nil
}

// ExportCmd writes a saved itinerary as an iCalendar file.
type ExportCmd struct {
	ID     string `arg:"" help:"Saved itinerary id."`
	Start  string `help:"Date of day 1 (YYYY-MM-DD) when the itinerary has no dates."`
	Output string `short:"o" help:"Output file; stdout when empty." type:"path"`
}

func (c *ExportCmd) Run(ctx *Context) error {
	api, err := ctx.client()
	if err != nil {
		return err
	}
	saved, err := api.Get(ctx.Ctx, c.ID)
	if err != nil {
		return err
	}
	opts := export.CalendarOptions{ID: saved.ID, Title: saved.Title}
	if c.Start != "" {
		if opts.Start, err = parseDate(c.Start); err != nil {
			return err
		}
	}
	ics, err := export.Calendar(saved.Itinerary, opts)
	if err != nil {
		return fmt.Errorf("export %s: %w (pass --start)", c.ID, err)
	}
	if c.Output == "" {
		fmt.Fprint(ctx.Out, ics)
		return nil
	}
	if err := os.WriteFile(c.Output, []byte(ics), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Wrote %s\n", c.Output)
	return nil
}

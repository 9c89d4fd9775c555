package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"itinera/internal/itinerary"
	"itinera/internal/logger"
	"itinera/internal/session"
)

// BatchCmd plans several trips concurrently. The input file holds a JSON
// array of trip preferences in the API's travelData shape.
type BatchCmd struct {
	File     string `arg:"" help:"JSON file with an array of trip preferences." type:"existingfile"`
	Parallel int    `help:"Sessions to run at once." default:"2"`
	OutDir   string `help:"Directory for the finished itineraries." default:"." type:"path"`
}

type batchResult struct {
	prefs itinerary.TripPreferences
	path  string
	days  int
	err   error
}

func (c *BatchCmd) Run(ctx *Context) error {
	raw, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	var trips []itinerary.TripPreferences
	if err := json.Unmarshal(raw, &trips); err != nil {
		return fmt.Errorf("parse %s: %w", c.File, err)
	}
	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return err
	}

	pl, err := ctx.planner()
	if err != nil {
		return err
	}
	defer pl.close()

	results := make([]batchResult, len(trips))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx.Ctx)
	g.SetLimit(max(c.Parallel, 1))
	for i, prefs := range trips {
		prefs = prefs.Normalize()
		results[i].prefs = prefs
		if err := prefs.Validate(); err != nil {
			results[i].err = err
			continue
		}
		g.Go(func() error {
			opts := pl.options
			opts.Observer = func(u session.Update) {
				if u.State == session.StateComplete || u.State == session.StateFailed {
					return
				}
				mu.Lock()
				fmt.Fprintf(ctx.Out, "%s %s\n", mutedStyle.Render(fmt.Sprintf("[%d]", i+1)), u.Progress)
				mu.Unlock()
			}
			doc, err := session.New(pl.source(prefs), opts).Run(gctx)
			if err != nil {
				results[i].err = err
				// one failed trip does not stop the others
				return gctx.Err()
			}
			path := filepath.Join(c.OutDir, fmt.Sprintf("%02d-%s.json", i+1, slug(prefs.Destination)))
			b, err := json.MarshalIndent(doc, "", "  ")
			if err == nil {
				err = os.WriteFile(path, b, 0o644)
			}
			results[i].path, results[i].days, results[i].err = path, len(doc.Days), err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			logger.Warn("batch trip failed", "index", i+1, "destination", r.prefs.Destination, "err", r.err)
			fmt.Fprintf(ctx.Out, "%s %s: %v\n", errorStyle.Render("✗"), r.prefs.Destination, r.err)
			continue
		}
		fmt.Fprintf(ctx.Out, "%s %s: %d days → %s\n", dayStyle.Render("✓"), r.prefs.Destination, r.days, r.path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d trips failed", failed, len(trips))
	}
	return nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		}
		return '-'
	}, s)
	s = strings.Trim(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if s == "" {
		return "trip"
	}
	return s
}

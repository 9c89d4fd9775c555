package cli

import (
	"encoding/json"
	"fmt"

	"itinera/internal/itinerary"
	"itinera/internal/session"
)

type GenerateCmd struct {
	Destination string   `help:"Destination, e.g. \"Lisbon, Portugal\"." required:""`
	Start       string   `help:"First day of the trip (YYYY-MM-DD)." required:""`
	End         string   `help:"Last day of the trip (YYYY-MM-DD)." required:""`
	Group       string   `help:"Group size." default:"couple" enum:"solo,couple,small-group,large-group"`
	Budget      string   `help:"Budget tier." default:"mid-range" enum:"budget,mid-range,luxury"`
	Interests   []string `help:"Interests, comma separated." default:"History & Culture,Food & Dining"`
	Pace        string   `help:"Travel pace." default:"moderate" enum:"relaxed,moderate,packed"`
	Stay        string   `help:"Accommodation style." default:"hotel" enum:"hotel,airbnb,hostel,boutique,mixed"`
	Needs       string   `help:"Special requirements."`
	Notes       string   `help:"Anything else the planner should know."`
	Buffered    bool     `help:"Skip streaming and wait for the whole itinerary."`
	JSON        bool     `name:"json" help:"Print the finished itinerary as JSON."`
	Save        string   `help:"Save the result under this title (requires --server)." placeholder:"TITLE"`
}

func (c *GenerateCmd) preferences() (itinerary.TripPreferences, error) {
	start, err := itinerary.ParseDate(c.Start)
	if err != nil {
		return itinerary.TripPreferences{}, err
	}
	end, err := itinerary.ParseDate(c.End)
	if err != nil {
		return itinerary.TripPreferences{}, err
	}
	p := itinerary.TripPreferences{
		Destination:         c.Destination,
		StartDate:           start,
		EndDate:             end,
		GroupSize:           itinerary.GroupSize(c.Group),
		Budget:              itinerary.BudgetTier(c.Budget),
		Interests:           c.Interests,
		Pace:                itinerary.Pace(c.Pace),
		Accommodation:       itinerary.Accommodation(c.Stay),
		SpecialRequirements: c.Needs,
		AdditionalInfo:      c.Notes,
	}.Normalize()
	return p, p.Validate()
}

func (c *GenerateCmd) Run(ctx *Context) error {
	prefs, err := c.preferences()
	if err != nil {
		return err
	}
	if c.Save != "" && ctx.Server == "" {
		return fmt.Errorf("--save requires --server")
	}

	pl, err := ctx.planner()
	if err != nil {
		return err
	}
	defer pl.close()

	opts := pl.options
	opts.Buffered = c.Buffered
	if !c.JSON {
		opts.Observer = func(u session.Update) { fmt.Fprint(ctx.Out, renderUpdate(u)) }
	}
	s := session.New(pl.source(prefs), opts)
	doc, err := s.Run(ctx.Ctx)
	if err != nil {
		return err
	}

	if c.JSON {
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.Out, string(b))
	} else {
		fmt.Fprint(ctx.Out, "\n"+renderDocument(doc))
	}

	if c.Save != "" {
		api, err := ctx.client()
		if err != nil {
			return err
		}
		var id string
		snap := s.Snapshot()
		if raw := snap.Raw(); raw != nil {
			id, err = api.SaveRaw(ctx.Ctx, c.Save, raw)
		} else {
			id, err = api.Save(ctx.Ctx, c.Save, doc)
		}
		if err != nil {
			return fmt.Errorf("save itinerary: %w", err)
		}
		fmt.Fprintf(ctx.Out, "Saved as %s\n", id)
	}
	return nil
}

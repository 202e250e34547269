package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/iudanet/credisync/internal/models"
	"github.com/iudanet/credisync/internal/validation"
)

var addUsage = "Usage: credisync add <client|route> or credisync add <type> --json '<document>'"

func (c *Cli) runAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	doc := fs.String("json", "", "record as a JSON document")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return fmt.Errorf("%w. %s", err, addUsage)
	}
	if len(positional) == 0 {
		return fmt.Errorf("missing entity type. %s", addUsage)
	}
	t, err := parseEntityType(positional[0])
	if err != nil {
		return err
	}

	var rec models.Record
	switch {
	case *doc != "":
		rec, err = c.decodeDocument(t, *doc)
	case t == models.EntityClient:
		rec, err = c.readClient()
	case t == models.EntityRoute:
		rec, err = c.readRoute()
	default:
		return fmt.Errorf("interactive input is not available for %s. %s", t, addUsage)
	}
	if err != nil {
		return err
	}

	return c.save(ctx, rec)
}

func (c *Cli) save(ctx context.Context, rec models.Record) error {
	id, err := c.data.Save(ctx, rec)
	if err != nil {
		c.printValidation(err)
		return fmt.Errorf("failed to save %s: %w", rec.EntityType(), err)
	}

	c.io.Println()
	c.io.Printf("✓ %s saved locally (ID: %s)\n", rec.EntityType(), id)
	c.io.Println("It will be sent to the server on the next sync.")
	return nil
}

// printValidation выводит нарушения по полям
func (c *Cli) printValidation(err error) {
	var ve *validation.ValidationError
	if !errors.As(err, &ve) {
		return
	}
	c.io.Println("Invalid data:")
	for _, f := range ve.Fields {
		c.io.Printf("  - %s: %s\n", f.Field, f.Message)
	}
}

// decodeDocument разбирает запись и подставляет scope по умолчанию
func (c *Cli) decodeDocument(t models.EntityType, doc string) (models.Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	if _, ok := fields["ownerScopeId"]; !ok && c.scopeID != "" {
		scope, err := json.Marshal(c.scopeID)
		if err != nil {
			return nil, err
		}
		fields["ownerScopeId"] = scope
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return models.DecodeRecord(t, raw)
}

func (c *Cli) readClient() (models.Record, error) {
	c.io.Println("=== Add Client ===")
	c.io.Println()

	client := &models.Client{Base: models.Base{OwnerScopeID: c.scopeID}, Status: models.ClientActive}

	prompts := []struct {
		prompt string
		dst    *string
	}{
		{"Name: ", &client.Name},
		{"Document: ", &client.Document},
		{"Phone (optional): ", &client.Phone},
		{"Address (optional): ", &client.Address},
		{"Route ID (optional): ", &client.RouteID},
		{"Notes (optional): ", &client.Notes},
	}
	for _, p := range prompts {
		value, err := c.io.ReadInput(p.prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		*p.dst = value
	}

	lat, err := c.readCoordinate("Latitude: ")
	if err != nil {
		return nil, err
	}
	lon, err := c.readCoordinate("Longitude: ")
	if err != nil {
		return nil, err
	}
	client.Latitude, client.Longitude = lat, lon
	return client, nil
}

func (c *Cli) readCoordinate(prompt string) (*float64, error) {
	value, err := c.io.ReadInput(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid coordinate %q: %w", value, err)
	}
	return &f, nil
}

func (c *Cli) readRoute() (models.Record, error) {
	c.io.Println("=== Add Route ===")
	c.io.Println()

	name, err := c.io.ReadInput("Name: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read name: %w", err)
	}
	color, err := c.io.ReadInput("Color (#RRGGBB, optional): ")
	if err != nil {
		return nil, fmt.Errorf("failed to read color: %w", err)
	}
	return &models.Route{
		Base:   models.Base{OwnerScopeID: c.scopeID},
		Name:   name,
		Color:  color,
		Active: true,
	}, nil
}

package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	departureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Departure",
		Fields: graphql.Fields{
			"line":         &graphql.Field{Type: graphql.String},
			"destination":  &graphql.Field{Type: graphql.String},
			"track":        &graphql.Field{Type: graphql.String},
			"stopCode":     &graphql.Field{Type: graphql.String},
			"departureIso": &graphql.Field{Type: graphql.String},
			"realtime":     &graphql.Field{Type: graphql.Boolean},
			"delaySeconds": &graphql.Field{Type: graphql.Int},
		},
	})

	stationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Station",
		Fields: graphql.Fields{
			"name":           &graphql.Field{Type: graphql.String},
			"stopName":       &graphql.Field{Type: graphql.String},
			"stopCode":       &graphql.Field{Type: graphql.String},
			"distanceMeters": &graphql.Field{Type: graphql.Float},
			"departures":     &graphql.Field{Type: graphql.NewList(departureType)},
		},
	})

	stopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stop",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"code":           &graphql.Field{Type: graphql.String},
			"stopCodes":      &graphql.Field{Type: graphql.NewList(graphql.String)},
			"distanceMeters": &graphql.Field{Type: graphql.Float},
		},
	})

	filterOptionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FilterOption",
		Fields: graphql.Fields{
			"value": &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	filterCatalogType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FilterCatalog",
		Fields: graphql.Fields{
			"lines":        &graphql.Field{Type: graphql.NewList(filterOptionType)},
			"destinations": &graphql.Field{Type: graphql.NewList(filterOptionType)},
		},
	})

	boardType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Board",
		Fields: graphql.Fields{
			"mode":           &graphql.Field{Type: graphql.String},
			"station":        &graphql.Field{Type: stationType},
			"stops":          &graphql.Field{Type: graphql.NewList(stopType)},
			"selectedStopId": &graphql.Field{Type: graphql.String},
			"filterOptions":  &graphql.Field{Type: filterCatalogType},
		},
	})

	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"label": &graphql.Field{Type: graphql.String},
			"lat":   &graphql.Field{Type: graphql.Float},
			"lon":   &graphql.Field{Type: graphql.Float},
		},
	})

	choiceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LocationChoice",
		Fields: graphql.Fields{
			"label": &graphql.Field{Type: graphql.String},
			"lat":   &graphql.Field{Type: graphql.Float},
			"lon":   &graphql.Field{Type: graphql.Float},
		},
	})

	resolutionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Resolution",
		Fields: graphql.Fields{
			"location": &graphql.Field{Type: locationType},
			"choices":  &graphql.Field{Type: graphql.NewList(choiceType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"board": &graphql.Field{
				Type:        boardType,
				Description: "Departure board near a location",
				Args: graphql.FieldConfigArgument{
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"mode":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "rail"},
					"stop":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"results": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					mode := domain.ParseMode(p.Args["mode"].(string))
					if mode == "" {
						return nil, domain.ErrInvalidMode
					}
					resp, err := deps.Departures.Departures(p.Context, domain.BoardQuery{
						Point: domain.GeoPoint{
							Lat: p.Args["lat"].(float64),
							Lon: p.Args["lon"].(float64),
						},
						Mode:         mode,
						StopID:       p.Args["stop"].(string),
						ResultsLimit: p.Args["results"].(int),
					})
					if err != nil {
						return nil, err
					}
					return boardMap(resp), nil
				},
			},
			"resolveLocation": &graphql.Field{
				Type:        resolutionType,
				Description: "Geocode a free-text location query",
				Args: graphql.FieldConfigArgument{
					"text": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lang": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Geocode.Resolve(p.Context, p.Args["text"].(string), p.Args["lang"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// boardMap flattens a board response into the map shape graphql-go
// resolves field names against.
func boardMap(resp *domain.BoardResponse) map[string]interface{} {
	out := map[string]interface{}{
		"mode":           resp.Mode,
		"selectedStopId": resp.SelectedStopID,
	}
	if resp.Station != nil {
		departures := make([]map[string]interface{}, len(resp.Station.Departures))
		for i, d := range resp.Station.Departures {
			departures[i] = map[string]interface{}{
				"line":         d.Line,
				"destination":  d.Destination,
				"track":        d.Track,
				"stopCode":     d.StopCode,
				"departureIso": d.Departure.Format(time.RFC3339),
				"realtime":     d.RealtimeUsed,
				"delaySeconds": d.DelaySeconds,
			}
		}
		out["station"] = map[string]interface{}{
			"name":           resp.Station.Name,
			"stopName":       resp.Station.StopName,
			"stopCode":       resp.Station.StopCode,
			"distanceMeters": resp.Station.DistanceMeters,
			"departures":     departures,
		}
	}
	if len(resp.Stops) > 0 {
		stops := make([]map[string]interface{}, len(resp.Stops))
		for i, s := range resp.Stops {
			stops[i] = map[string]interface{}{
				"id":             s.ID,
				"name":           s.Name,
				"code":           s.Code,
				"stopCodes":      s.StopCodes,
				"distanceMeters": s.DistanceMeters,
			}
		}
		out["stops"] = stops
	}
	if resp.FilterOptions != nil {
		lines := make([]map[string]interface{}, len(resp.FilterOptions.Lines))
		for i, o := range resp.FilterOptions.Lines {
			lines[i] = map[string]interface{}{"value": o.Value, "count": o.Count}
		}
		dests := make([]map[string]interface{}, len(resp.FilterOptions.Destinations))
		for i, o := range resp.FilterOptions.Destinations {
			dests[i] = map[string]interface{}{"value": o.Value, "count": o.Count}
		}
		out["filterOptions"] = map[string]interface{}{
			"lines":        lines,
			"destinations": dests,
		}
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}

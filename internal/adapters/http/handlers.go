package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/fheinonen/helsinki-moves/internal/core/usecases"
	"github.com/fheinonen/helsinki-moves/internal/pkg/metrics"
)

// maxLocationQueryLength bounds free-text geocode input.
const maxLocationQueryLength = 200

// DeparturesHandler proxies a departure board request to the routing API.
// Query parameters: lat, lon (required), mode (rail|bus, default rail),
// stop, line (repeatable), dest (repeatable), results.
func DeparturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		if !c.Context().QueryArgs().Has("lat") || !c.Context().QueryArgs().Has("lon") {
			return errBadRequest(c, "lat and lon are required")
		}

		mode := domain.ParseMode(c.Query("mode", "rail"))
		if mode == "" {
			return errBadRequest(c, "mode must be rail or bus")
		}

		limit := c.QueryInt("results", 0)
		if limit != 0 && !usecases.ValidResultsLimit(limit) {
			limit = 0
		}

		q := domain.BoardQuery{
			Point:        domain.GeoPoint{Lat: lat, Lon: lon},
			Mode:         mode,
			ResultsLimit: limit,
			StopID:       c.Query("stop"),
			Lines:        queryValues(c, "line"),
			Destinations: queryValues(c, "dest"),
		}

		metrics.BoardLoadsStarted.WithLabelValues(string(mode)).Inc()

		resp, err := deps.Departures.Departures(c.UserContext(), q)
		if err != nil {
			metrics.UpstreamErrors.WithLabelValues("routing").Inc()
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(resp)
	}
}

// GeocodeHandler resolves a free-text location query to either one
// location or a small choice set.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		text := c.Query("q")
		if text == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(text) > maxLocationQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		metrics.GeocodeRequests.Inc()

		resolution, err := deps.Geocode.Resolve(c.UserContext(), text, c.Query("lang"))
		if err != nil {
			metrics.UpstreamErrors.WithLabelValues("geocoding").Inc()
			return errFromDomain(c, err)
		}
		if len(resolution.Choices) > 0 {
			metrics.GeocodeAmbiguous.Inc()
		}

		c.Set("Cache-Control", "private, max-age=60")
		return c.JSON(resolution)
	}
}

// queryValues returns every occurrence of a repeatable query parameter.
func queryValues(c *fiber.Ctx, key string) []string {
	var values []string
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		if string(k) == key && len(v) > 0 {
			values = append(values, string(v))
		}
	})
	return values
}

package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/getverbrauch/consumption-export/internal/calendar"
	"github.com/getverbrauch/consumption-export/internal/datetoken"
	"github.com/getverbrauch/consumption-export/internal/store"
	"github.com/getverbrauch/consumption-export/internal/validate"
)

var structValidator = validator.New()

// ReportReader is the read side of the report store.
type ReportReader interface {
	Latest(file string) (validate.FileResult, error)
	History(file string) ([]validate.FileResult, error)
	LatestAll() []validate.FileResult
}

// Deps are the collaborators the routes read from. Nil fields disable the
// matching route or fall back to a default.
type Deps struct {
	Reports ReportReader
	Metrics http.Handler
	Now     calendar.Clock
	LastRun func() (time.Time, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{"status": "ok"}
		if deps.LastRun != nil {
			at, err := deps.LastRun()
			if !at.IsZero() {
				body["last_run"] = at
			}
			if err != nil {
				body["last_error"] = err.Error()
			}
		}
		return c.JSON(body)
	})

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/months", func(c *fiber.Ctx) error {
		var q monthsQuery
		q.Range = c.Query("range")
		if err := structValidator.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "range query parameter is required (YYYY-MM;YYYY-MM)")
		}

		r, err := calendar.ParseRange(q.Range, deps.Now)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		months := make([]monthInfo, 0, r.Len())
		for _, m := range r.Months() {
			cursor, err := datetoken.EncodeTransportToken(m.String())
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to encode cursor")
			}
			months = append(months, monthInfo{
				Month:  m.String(),
				Days:   m.Days(),
				Hours:  calendar.HoursCapacity(m),
				Cursor: cursor,
			})
		}

		return c.JSON(fiber.Map{
			"range":  r.String(),
			"months": months,
		})
	})

	if deps.Reports == nil {
		return
	}

	v1.Get("/reports", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"reports": deps.Reports.LatestAll()})
	})

	v1.Get("/reports/:file", func(c *fiber.Ctx) error {
		var q reportQuery
		q.File = c.Params("file")
		q.History = c.QueryBool("history", false)
		if err := structValidator.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if q.History {
			results, err := deps.Reports.History(q.File)
			if err != nil {
				return reportError(err)
			}
			return c.JSON(fiber.Map{"file": q.File, "history": results})
		}

		result, err := deps.Reports.Latest(q.File)
		if err != nil {
			return reportError(err)
		}
		return c.JSON(result)
	})
}

func reportError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "no validation report for requested file")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch validation report")
}

// monthsQuery holds query parameters for the months endpoint.
type monthsQuery struct {
	Range string `validate:"required"`
}

type monthInfo struct {
	Month  string `json:"month"`
	Days   int    `json:"days"`
	Hours  int    `json:"hours"`
	Cursor string `json:"cursor"`
}

// reportQuery holds path and query parameters for a single report.
type reportQuery struct {
	File    string `validate:"required,max=255"`
	History bool
}

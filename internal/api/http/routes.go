package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jean18/front/internal/common"
	"github.com/jean18/front/internal/pipeline"
	"github.com/jean18/front/internal/store"
)

var validate = validator.New()

// Runner starts pipeline runs.
type Runner interface {
	DAGID() string
	Start(ctx context.Context, logicalDate time.Time) (string, <-chan pipeline.Run, error)
}

// RunStore reads the run history.
type RunStore interface {
	GetLatest(dagID string) (pipeline.Run, error)
	GetRange(dagID string, from, to time.Time) ([]pipeline.Run, error)
	List(dagID string) []pipeline.Run
}

// Variables reads pipeline variables.
type Variables interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Runner    Runner
	Runs      RunStore
	Variables Variables

	// BaseContext is the parent of runs started over HTTP; cancel it on shutdown.
	BaseContext context.Context
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/runs", func(c *fiber.Ctx) error {
		dagID := deps.Runner.DAGID()
		if c.Query("from") == "" && c.Query("to") == "" {
			return c.JSON(fiber.Map{
				"dagId": dagID,
				"runs":  nonNil(deps.Runs.List(dagID)),
			})
		}

		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		runs, err := deps.Runs.GetRange(dagID, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch run history")
		}

		return c.JSON(fiber.Map{
			"dagId": dagID,
			"from":  req.From,
			"to":    req.To,
			"runs":  runs,
		})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		run, err := deps.Runs.GetLatest(deps.Runner.DAGID())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch latest run")
		}
		return c.JSON(run)
	})

	v1.Post("/runs", func(c *fiber.Ctx) error {
		logical := time.Now().UTC()
		if raw := c.Query("logical_date"); raw != "" {
			ts, err := common.ParseTimestamp(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			logical = ts
		}

		id, _, err := deps.Runner.Start(deps.BaseContext, logical)
		if err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to start run")
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"runId":       id,
			"dagId":       deps.Runner.DAGID(),
			"logicalDate": logical,
		})
	})

	v1.Get("/variables/:key", func(c *fiber.Ctx) error {
		key := c.Params("key")
		value, ok, err := deps.Variables.Get(c.UserContext(), key)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read variable")
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "variable not set")
		}
		return c.JSON(fiber.Map{
			"key":   key,
			"value": value,
		})
	})
}

// historyQuery holds query parameters for the run history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required together")
	}

	from, err := common.ParseTimestamp(fromStr)
	if err != nil {
		return err
	}
	to, err := common.ParseTimestamp(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

func nonNil(runs []pipeline.Run) []pipeline.Run {
	if runs == nil {
		return []pipeline.Run{}
	}
	return runs
}

package reconciliation

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes manual job runs for operators
type Handler struct {
	scheduler *Scheduler
}

func NewHandler(scheduler *Scheduler) *Handler {
	return &Handler{scheduler: scheduler}
}

// RegisterRoutes mounts the job routes under router; callers are expected to
// keep router off the public listener or behind their own guard.
func (h *Handler) RegisterRoutes(router fiber.Router) {
	jobs := router.Group("/jobs")
	jobs.Post("/:name/run", h.RunJob)
}

// RunJob handles POST /jobs/:name/run
func (h *Handler) RunJob(c *fiber.Ctx) error {
	report, err := h.scheduler.RunNow(c.UserContext(), JobName(c.Params("name")))
	switch {
	case errors.Is(err, ErrUnknownJob):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "unknown_job",
			"message": err.Error(),
		})
	case errors.Is(err, ErrJobRunning):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "job_running",
			"message": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "job_failed",
			"message": err.Error(),
			"report":  report,
		})
	}
	return c.JSON(report)
}

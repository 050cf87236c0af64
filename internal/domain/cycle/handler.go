package cycle

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ivf/ivf/internal/platform/auth"
	"github.com/ivf/ivf/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleEmbryologist, auth.RoleNurse))
	read.GET("/cycles", h.ListCycles)
	read.GET("/cycles/:id", h.GetCycle)
	read.GET("/cycles/:id/progress", h.GetProgress)
	read.GET("/cycles/:id/stats", h.GetStats)
	read.GET("/cycles/:id/status-history", h.GetStatusHistory)
	read.GET("/patients/:patient_id/cycles", h.ListPatientCycles)
	read.GET("/reports/cycles", h.GetReport)

	write := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse))
	write.POST("/cycles", h.CreateCycle)
	write.PUT("/cycles/:id", h.UpdateCycle)
	write.DELETE("/cycles/:id", h.DeleteCycle)
	write.PATCH("/cycles/:id/status", h.UpdateStatus)
	write.POST("/cycles/:id/reopen", h.ReopenCycle)
}

func httpError(err error, fallback int) *echo.HTTPError {
	var te *TransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "cycle not found")
	case errors.As(err, &te):
		return echo.NewHTTPError(http.StatusConflict, te)
	}
	return echo.NewHTTPError(fallback, err.Error())
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// searchParams picks the supported filters from the query string.
func searchParams(c echo.Context) map[string]string {
	params := make(map[string]string)
	for _, k := range []string{"patient", "status", "type", "start_from", "start_to"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	return params
}

func (h *Handler) CreateCycle(c echo.Context) error {
	var cy Cycle
	if err := c.Bind(&cy); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCycle(c.Request().Context(), &cy); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cy)
}

func (h *Handler) GetCycle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	cy, err := h.svc.GetCycle(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, cy)
}

func (h *Handler) ListCycles(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCycles(c.Request().Context(), searchParams(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).
		WithLinks(pg.Links(c.Request().URL, total)))
}

func (h *Handler) ListPatientCycles(c echo.Context) error {
	patientID, err := parseID(c, "patient_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateCycle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var cy Cycle
	if err := c.Bind(&cy); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cy.ID = id
	if err := h.svc.UpdateCycle(c.Request().Context(), &cy); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, cy)
}

func (h *Handler) DeleteCycle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteCycle(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

type statusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	cy, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, req.Reason)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, cy)
}

func (h *Handler) ReopenCycle(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	cy, err := h.svc.ReopenCycle(c.Request().Context(), id, req.Status, req.Reason)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, cy)
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.GetStatusHistory(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetProgress(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Progress(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetStats(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	stats, err := h.svc.Stats(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetReport(c echo.Context) error {
	r, err := h.svc.Report(c.Request().Context(), searchParams(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

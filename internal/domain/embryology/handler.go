package embryology

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ivf/ivf/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleEmbryologist, auth.RoleNurse))
	read.GET("/cycles/:id/embryos", h.ListEmbryos)
	read.GET("/cycles/:id/embryos/summary", h.GetSummary)
	read.GET("/embryos/:id", h.GetEmbryo)
	h.RegisterGradeRoute(api)

	write := api.Group("", auth.RequireRole(auth.RoleEmbryologist, auth.RolePhysician))
	write.POST("/cycles/:id/embryos", h.CreateEmbryo)
	write.POST("/cycles/:id/transfer", h.Transfer)
	write.PUT("/embryos/:id", h.UpdateEmbryo)
	write.DELETE("/embryos/:id", h.DeleteEmbryo)
	write.POST("/embryos/:id/events", h.RecordEvent)
}

// RegisterGradeRoute registers only the grading preview, which never
// touches storage.
func (h *Handler) RegisterGradeRoute(api *echo.Group) {
	api.POST("/embryos/grade", h.Grade, auth.RequireRole(auth.RolePhysician, auth.RoleEmbryologist, auth.RoleNurse))
}

// httpError maps domain errors to HTTP errors; anything unrecognised gets
// the fallback status.
func httpError(err error, fallback int) *echo.HTTPError {
	var invalid *InvalidEmbryoDataError
	var selection *TransferSelectionError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "embryo not found")
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, invalid)
	case errors.As(err, &selection):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, selection)
	case errors.Is(err, ErrIneligible):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(fallback, err.Error())
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateEmbryo(c echo.Context) error {
	cycleID, err := parseID(c)
	if err != nil {
		return err
	}
	var e Embryo
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.CycleID = cycleID
	if err := h.svc.CreateEmbryo(c.Request().Context(), &e); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cycle not found")
		}
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEmbryo(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEmbryo(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEmbryos(c echo.Context) error {
	cycleID, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListEmbryos(c.Request().Context(), cycleID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateEmbryo(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var e Embryo
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = id
	if err := h.svc.UpdateEmbryo(c.Request().Context(), &e); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEmbryo(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEmbryo(c.Request().Context(), id); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetSummary(c echo.Context) error {
	cycleID, err := parseID(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.Summary(c.Request().Context(), cycleID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) RecordEvent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var ev Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.RecordEvent(c.Request().Context(), id, ev)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, e)
}

type transferRequest struct {
	EmbryoIDs []uuid.UUID `json:"embryo_ids"`
}

func (h *Handler) Transfer(c echo.Context) error {
	cycleID, err := parseID(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	selected, err := h.svc.SelectForTransfer(c.Request().Context(), cycleID, req.EmbryoIDs)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, selected)
}

// GradeRequest is a flat observation as entered on the grading form.
type GradeRequest struct {
	Day                  *int         `json:"day"`
	CellCount            *int         `json:"cell_count"`
	FragmentationPercent *float64     `json:"fragmentation_percent"`
	Symmetry             *Symmetry    `json:"symmetry"`
	Expansion            *int         `json:"expansion"`
	ICMGrade             *GradeLetter `json:"icm_grade"`
	TEGrade              *GradeLetter `json:"te_grade"`
	Grade                string       `json:"grade"`
	Quality              Quality      `json:"quality"`
}

// Observation builds a stage-tagged observation from the flat fields.
func (r GradeRequest) Observation() (Observation, error) {
	obs := Observation{Day: r.Day, ManualGrade: r.Grade, Quality: r.Quality}
	cleavage := r.CellCount != nil || r.FragmentationPercent != nil || r.Symmetry != nil
	blastocyst := r.Expansion != nil || r.ICMGrade != nil || r.TEGrade != nil
	switch {
	case cleavage && blastocyst:
		return Observation{}, invalidData("morphology", "cleavage and blastocyst fields cannot both be set", nil)
	case cleavage:
		obs.Morphology = CleavageMorphology{CellCount: r.CellCount, FragmentationPercent: r.FragmentationPercent, Symmetry: r.Symmetry}
	case blastocyst:
		obs.Morphology = BlastocystMorphology{Expansion: r.Expansion, ICMGrade: r.ICMGrade, TEGrade: r.TEGrade}
	}
	return obs, nil
}

func (h *Handler) Grade(c echo.Context) error {
	var req GradeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	obs, err := req.Observation()
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	res, err := h.svc.Grade(obs)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, res)
}

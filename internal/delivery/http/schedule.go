package http

import (
	"errors"
	"net/http"
	"strconv"

	"quant-platform/internal/dto"
	"quant-platform/internal/model"
	"quant-platform/internal/scheduler"
	"quant-platform/internal/service"
	"quant-platform/pkg/logger"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupHealth(base *echo.Group) {
	base.GET("/health", h.health)
}

func (h *HttpAPIHandler) SetupScheduler(base *echo.Group) {
	jobs := base.Group("/scheduler/jobs")
	jobs.GET("", h.listJobs)
	jobs.POST("", h.createJob)
	jobs.PUT("/:id", h.updateJob)
	jobs.DELETE("/:id", h.deleteJob)
	jobs.PATCH("/:id/enabled", h.setJobEnabled)
	jobs.POST("/:id/run", h.runJob)

	base.GET("/scheduler/logs", h.listLogs)
}

func (h *HttpAPIHandler) health(c echo.Context) error {
	resp := h.service.HealthService.Check(c.Request().Context())
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(resp.Status, resp))
}

func (h *HttpAPIHandler) listJobs(c echo.Context) error {
	jobs, err := h.service.ScheduleJobService.ListJobs(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", jobs))
}

func (h *HttpAPIHandler) createJob(c echo.Context) error {
	req := new(dto.CreateScheduleJobRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	job, err := h.service.ScheduleJobService.CreateJob(c.Request().Context(), *req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "job created", job))
}

func (h *HttpAPIHandler) updateJob(c echo.Context) error {
	id, err := jobIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	req := new(dto.UpdateScheduleJobRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	job, err := h.service.ScheduleJobService.UpdateJob(c.Request().Context(), id, *req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("job updated", job))
}

func (h *HttpAPIHandler) setJobEnabled(c echo.Context) error {
	id, err := jobIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	req := new(dto.SetEnabledRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	job, err := h.service.ScheduleJobService.SetEnabled(c.Request().Context(), id, *req.Enabled)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("job updated", job))
}

func (h *HttpAPIHandler) deleteJob(c echo.Context) error {
	id, err := jobIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	if err := h.service.ScheduleJobService.DeleteJob(c.Request().Context(), id); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("job deleted", nil))
}

func (h *HttpAPIHandler) runJob(c echo.Context) error {
	id, err := jobIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	resp, err := h.service.ScheduleJobService.RunJobNow(c.Request().Context(), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse(resp.Message, resp))
}

func (h *HttpAPIHandler) listLogs(c echo.Context) error {
	req := new(dto.ListScheduleLogsRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid query parameters"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	var jobID *uint
	if req.JobID != 0 {
		jobID = &req.JobID
	}
	logs, err := h.service.ScheduleJobService.ListLogs(c.Request().Context(), jobID, req.Limit)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", logs))
}

func jobIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid job id")
	}
	return uint(id), nil
}

func (h *HttpAPIHandler) errorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateJobName):
		code = http.StatusConflict
	case errors.Is(err, model.ErrInvalidJobKind), errors.Is(err, scheduler.ErrInvalidCronExpr), errors.Is(err, service.ErrLogLimitTooLarge):
		code = http.StatusBadRequest
	}

	if code == http.StatusInternalServerError {
		h.log.ErrorContext(c.Request().Context(), "Admin request failed",
			logger.StringField("path", c.Path()),
			logger.ErrorField(err),
		)
		return c.JSON(code, dto.NewErrorResponse(code, "internal server error"))
	}
	return c.JSON(code, dto.NewErrorResponse(code, err.Error()))
}

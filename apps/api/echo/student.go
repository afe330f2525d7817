package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackle/core/classroom"
)

type studentApi struct {
	svc      *classroom.Service
	validate *validator.Validate
}

// registerStudentAPI registers the student endpoints on `g`, which must only let students through.
func registerStudentAPI(g *echo.Group, svc *classroom.Service, validate *validator.Validate) {
	api := studentApi{svc: svc, validate: validate}

	g.GET("", api.listAssignable)
	g.GET("/subjects", api.retrieveSubjects)
	g.PUT("/subjects", api.updateSubjects)
	g.GET("/finished", api.listFinished)
	g.GET("/requirement/:id", api.presentQuestion)
	g.POST("/requirement/:id", api.submitAnswer)
}

// Handlers

func (api *studentApi) listAssignable(ctx echo.Context) error {
	student, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	reqs, err := api.svc.ListAssignable(ctx.Request().Context(), student)
	if err != nil {
		return errors.Wrap(err, "querying assignable requirements")
	}
	if reqs == nil {
		reqs = []classroom.Requirement{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *studentApi) retrieveSubjects(ctx echo.Context) error {
	student, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	subjects, err := api.svc.GetSubjects(ctx.Request().Context(), student)
	if err != nil {
		return errors.Wrap(err, "getting student subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *studentApi) updateSubjects(ctx echo.Context) error {
	student, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	var data classroom.UpdateStudentSubjects
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudentSubjects")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	subjects, err := api.svc.UpdateSubjects(ctx.Request().Context(), student, data)
	if err != nil {
		return errors.Wrap(err, "updating student subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *studentApi) listFinished(ctx echo.Context) error {
	student, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	taken, err := api.svc.ListFinished(ctx.Request().Context(), student)
	if err != nil {
		return errors.Wrap(err, "querying finished requirements")
	}
	return ctx.JSON(http.StatusOK, taken)
}

// presentQuestion presents the next unanswered question of the requirement.
func (api *studentApi) presentQuestion(ctx echo.Context) error {
	student, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	attempt, err := api.svc.TakeRequirement(ctx.Request().Context(), student, id, nil)
	if err != nil {
		return errors.Wrap(err, "taking requirement")
	}
	return ctx.JSON(http.StatusOK, attempt)
}

// submitAnswer answers the question currently presented.
// Clients are redirected to the next question until the requirement is completed.
func (api *studentApi) submitAnswer(ctx echo.Context) error {
	student, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data classroom.SubmitAnswer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAnswer")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	attempt, err := api.svc.TakeRequirement(ctx.Request().Context(), student, id, &data.AnswerID)
	if err != nil {
		return errors.Wrap(err, "taking requirement")
	}

	switch attempt.Outcome {
	case classroom.OutcomeAdvance:
		return ctx.Redirect(http.StatusSeeOther, ctx.Request().URL.Path)
	case classroom.OutcomeCompleted:
		return ctx.JSON(http.StatusCreated, attempt)
	default:
		return ctx.JSON(http.StatusOK, attempt)
	}
}

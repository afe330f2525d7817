package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackle/core/classroom"
)

type teacherApi struct {
	svc      *classroom.Service
	validate *validator.Validate
}

// registerTeacherAPI registers the authoring endpoints on `g`, which must only let teachers through.
func registerTeacherAPI(g *echo.Group, svc *classroom.Service, validate *validator.Validate) {
	api := teacherApi{svc: svc, validate: validate}

	g.GET("", api.listRequirements)
	g.GET("/subjects", api.listSubjects)
	g.POST("/subjects/add", api.createSubject)
	g.POST("/requirement/add", api.createRequirement)

	rg := g.Group("/requirement/:id")
	rg.GET("", api.retrieveRequirement)
	rg.PUT("", api.updateRequirement)
	rg.DELETE("/delete", api.destroyRequirement)
	rg.GET("/results", api.requirementResults)
	rg.POST("/question/add", api.addQuestion)

	qg := g.Group("/requirement/:id/question/:qid")
	qg.GET("", api.retrieveQuestion)
	qg.PUT("", api.changeQuestion)
	qg.DELETE("/delete", api.destroyQuestion)
}

// Handlers

func (api *teacherApi) listRequirements(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx, classroom.RequirementOrderingFields)

	reqs, err := api.svc.ListRequirements(ctx.Request().Context(), teacher, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying requirements")
	}
	if reqs == nil {
		reqs = []classroom.Requirement{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *teacherApi) listSubjects(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	subjects, err := api.svc.ListSubjects(ctx.Request().Context(), teacher)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []classroom.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *teacherApi) createSubject(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	subj, err := api.svc.CreateSubject(ctx.Request().Context(), teacher, data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subj)
}

func (api *teacherApi) createRequirement(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewRequirement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequirement")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc, teacher.ID); err != nil {
		return err
	}

	req, err := api.svc.CreateRequirement(ctx.Request().Context(), teacher, data)
	if err != nil {
		return errors.Wrap(err, "creating requirement")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *teacherApi) retrieveRequirement(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	detail, err := api.svc.GetRequirement(ctx.Request().Context(), teacher, id)
	if err != nil {
		return errors.Wrap(err, "getting requirement")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *teacherApi) updateRequirement(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data classroom.UpdateRequirement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRequirement")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc, teacher.ID); err != nil {
		return err
	}

	req, err := api.svc.UpdateRequirement(ctx.Request().Context(), teacher, id, data)
	if err != nil {
		return errors.Wrap(err, "updating requirement")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *teacherApi) destroyRequirement(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	if _, err = api.svc.DeleteRequirement(ctx.Request().Context(), teacher, id); err != nil {
		return errors.Wrap(err, "deleting requirement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) requirementResults(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	results, err := api.svc.RequirementResults(ctx.Request().Context(), teacher, id)
	if err != nil {
		return errors.Wrap(err, "getting requirement results")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *teacherApi) addQuestion(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data classroom.NewQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.AddQuestion(ctx.Request().Context(), teacher, id, data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *teacherApi) retrieveQuestion(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	rid, qid, err := questionParams(ctx)
	if err != nil {
		return err
	}

	q, err := api.svc.GetQuestion(ctx.Request().Context(), teacher, rid, qid)
	if err != nil {
		return errors.Wrap(err, "getting question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *teacherApi) changeQuestion(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	rid, qid, err := questionParams(ctx)
	if err != nil {
		return err
	}
	var data classroom.UpdateQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.ChangeQuestion(ctx.Request().Context(), teacher, rid, qid, data)
	if err != nil {
		return errors.Wrap(err, "changing question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *teacherApi) destroyQuestion(ctx echo.Context) error {
	teacher, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	rid, qid, err := questionParams(ctx)
	if err != nil {
		return err
	}

	if _, err = api.svc.DeleteQuestion(ctx.Request().Context(), teacher, rid, qid); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func questionParams(ctx echo.Context) (int64, int64, error) {
	rid, err := paramID(ctx, "id")
	if err != nil {
		return 0, 0, err
	}
	qid, err := paramID(ctx, "qid")
	if err != nil {
		return 0, 0, err
	}
	return rid, qid, nil
}

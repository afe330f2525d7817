package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/trackle/core/user"
)

// studentRequired lets through accounts acting as students only.
func studentRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := contextStudent(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}

// teacherRequired lets through accounts acting as teachers only.
func teacherRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, err := contextTeacher(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}

func contextStudent(ctx echo.Context) (user.StudentAccount, error) {
	acc, err := contextAccount(ctx)
	if err != nil {
		return user.StudentAccount{}, err
	}
	if student, ok := acc.(user.StudentAccount); ok {
		return student, nil
	}
	return user.StudentAccount{}, errHttpForbidden
}

func contextTeacher(ctx echo.Context) (user.TeacherAccount, error) {
	acc, err := contextAccount(ctx)
	if err != nil {
		return user.TeacherAccount{}, err
	}
	if teacher, ok := acc.(user.TeacherAccount); ok {
		return teacher, nil
	}
	return user.TeacherAccount{}, errHttpForbidden
}

package testutil

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/core/classroom"
	"github.com/trezcool/trackle/core/user"
	logsvc "github.com/trezcool/trackle/services/logger"
	"github.com/trezcool/trackle/storage/database"
)

// Password satisfies the password policy.
const Password = "Tr4ckle!pwd"

// NewConfig returns the configuration used in tests.
func NewConfig() *core.Config {
	return &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "Trackle",
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
		Database: core.DatabaseConfig{Engine: database.EngineSQLite},
		Log:      core.LogConfig{Level: "error"},
	}
}

// PrepareDB opens a migrated, in-memory sqlite database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(database.SQLiteDSN(uuid.NewString(), true))
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(t *testing.T, repo user.Repository, name, uname, email string, role user.Role) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTeacher(t *testing.T, repo user.Repository, uname string) user.TeacherAccount {
	t.Helper()
	return user.TeacherAccount{User: CreateUser(t, repo, "", uname, uname+"@trackle.test", user.RoleTeacher)}
}

func CreateStudent(t *testing.T, repo user.Repository, uname string) user.StudentAccount {
	t.Helper()
	return user.StudentAccount{User: CreateUser(t, repo, "", uname, uname+"@trackle.test", user.RoleStudent)}
}

func CreateSubject(t *testing.T, repo classroom.Repository, teacher user.TeacherAccount, name string) classroom.Subject {
	t.Helper()
	subj, err := repo.CreateSubject(context.Background(), classroom.Subject{
		TeacherID: teacher.ID,
		Name:      name,
		Color:     classroom.DefaultSubjectColor,
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return subj
}

func CreateRequirement(t *testing.T, repo classroom.Repository, teacher user.TeacherAccount, subj classroom.Subject, name string, due time.Time) classroom.Requirement {
	t.Helper()
	req, err := repo.CreateRequirement(context.Background(), classroom.Requirement{
		OwnerID:   teacher.ID,
		SubjectID: subj.ID,
		Name:      name,
		DueDate:   core.TruncateDate(due),
	})
	if err != nil {
		t.Fatalf("CreateRequirement() failed: %v", err)
	}
	return req
}

// CreateQuestion creates a question with one answer per text, the first one being the correct one.
func CreateQuestion(t *testing.T, repo classroom.Repository, req classroom.Requirement, text string, answers ...string) classroom.Question {
	t.Helper()
	ctx := context.Background()
	q, err := repo.CreateQuestion(ctx, classroom.Question{RequirementID: req.ID, Text: text})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	for i, a := range answers {
		ans, err := repo.CreateAnswer(ctx, classroom.Answer{QuestionID: q.ID, Text: a, IsCorrect: i == 0})
		if err != nil {
			t.Fatalf("CreateQuestion() failed: %v", err)
		}
		q.Answers = append(q.Answers, ans)
	}
	q.AnswersCount = len(q.Answers)
	return q
}

func Enrol(t *testing.T, repo classroom.Repository, student user.StudentAccount, subjects ...classroom.Subject) {
	t.Helper()
	ids := make([]int64, 0, len(subjects))
	for _, s := range subjects {
		ids = append(ids, s.ID)
	}
	if err := repo.SetStudentSubjects(context.Background(), student.ID, ids); err != nil {
		t.Fatalf("Enrol() failed: %v", err)
	}
}

// NewLogger returns a logger discarding its output.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.NewZerolog(conf.Log, io.Discard), conf)
}

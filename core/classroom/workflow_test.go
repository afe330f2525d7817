package classroom_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/core/classroom"
	"github.com/trezcool/trackle/core/user"
	emailsvc "github.com/trezcool/trackle/services/email"
	inmemdb "github.com/trezcool/trackle/storage/database/inmem"
	testutil "github.com/trezcool/trackle/tests"
)

type fixture struct {
	repo    classroom.Repository
	usrRepo user.Repository
	svc     *classroom.Service
	mailSvc *emailsvc.ConsoleServiceMock
	teacher user.TeacherAccount
	student user.StudentAccount
	subject classroom.Subject
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	db := inmemdb.NewDB()
	f := &fixture{
		repo:    inmemdb.NewClassroomRepository(db),
		usrRepo: inmemdb.NewUserRepository(db),
		mailSvc: emailsvc.NewConsoleServiceMock(conf, logger),
	}
	f.svc = classroom.NewService(f.repo, f.mailSvc, logger)
	f.teacher = testutil.CreateTeacher(t, f.usrRepo, "teacher")
	f.student = testutil.CreateStudent(t, f.usrRepo, "student")
	f.subject = testutil.CreateSubject(t, f.repo, f.teacher, "Math")
	return f
}

func (f *fixture) requirement(t *testing.T, name string, questions int) (classroom.Requirement, []classroom.Question) {
	t.Helper()
	req := testutil.CreateRequirement(t, f.repo, f.teacher, f.subject, name, core.Today().AddDate(0, 0, 7))
	qs := make([]classroom.Question, 0, questions)
	for i := 0; i < questions; i++ {
		qs = append(qs, testutil.CreateQuestion(t, f.repo, req, string(rune('A'+i))+" question", "right", "wrong"))
	}
	return req, qs
}

func submit(id int64) *int64 {
	return &id
}

func TestTakeRequirement_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, qs := f.requirement(t, "Algebra", 2)

	state, err := f.svc.AttemptState(ctx, f.student, req.ID)
	require.NoError(t, err)
	assert.Equal(t, classroom.StateNotStarted, state)

	attempt, err := f.svc.TakeRequirement(ctx, f.student, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeQuestion, attempt.Outcome)
	assert.Equal(t, classroom.StateNotStarted, attempt.State)
	assert.Equal(t, 50, attempt.Progress)
	assert.Equal(t, 2, attempt.TotalQuestions)
	require.NotNil(t, attempt.Question)
	assert.Equal(t, qs[0].ID, attempt.Question.ID)
	assert.Len(t, attempt.Question.Answers, 2)

	attempt, err = f.svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[0].Answers[0].ID))
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeAdvance, attempt.Outcome)
	assert.Equal(t, 1, attempt.Unanswered)
	assert.Equal(t, 100, attempt.Progress)

	state, err = f.svc.AttemptState(ctx, f.student, req.ID)
	require.NoError(t, err)
	assert.Equal(t, classroom.StateInProgress, state)

	attempt, err = f.svc.TakeRequirement(ctx, f.student, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, classroom.StateInProgress, attempt.State)
	assert.Equal(t, qs[1].ID, attempt.Question.ID)

	attempt, err = f.svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[1].Answers[0].ID))
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeCompleted, attempt.Outcome)
	assert.Equal(t, classroom.StateCompleted, attempt.State)
	require.NotNil(t, attempt.Taken)
	assert.Equal(t, 100.0, attempt.Taken.Score)
	assert.Equal(t, classroom.LevelSuccess, attempt.MessageLevel)
	assert.Equal(t, "Congratulations! You completed the requirement Algebra with success! You scored 100.0 points.", attempt.Message)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "student@trackle.test", sent[0].To[0].Address)
	assert.Equal(t, "requirement_completed", sent[0].TemplateName)
	assert.Contains(t, sent[0].TextContent, attempt.Message)

	finished, err := f.svc.ListFinished(ctx, f.student)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	assert.Equal(t, "Algebra", finished[0].Requirement.Name)
}

func TestTakeRequirement_Failure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, qs := f.requirement(t, "Algebra", 3)

	for i, q := range qs {
		ans := q.Answers[1] // wrong
		if i == 0 {
			ans = q.Answers[0]
		}
		_, err := f.svc.TakeRequirement(ctx, f.student, req.ID, submit(ans.ID))
		require.NoError(t, err)
	}

	taken, err := f.repo.GetTakenRequirement(ctx, f.student.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 33.33, taken.Score)

	attempt, err := f.svc.TakeRequirement(ctx, f.student, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeAlreadyTaken, attempt.Outcome)
	assert.Equal(t, 33.33, attempt.Taken.Score)
}

func TestTakeRequirement_HalfScoreSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, qs := f.requirement(t, "Algebra", 2)

	_, err := f.svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[0].Answers[1].ID))
	require.NoError(t, err)
	attempt, err := f.svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[1].Answers[0].ID))
	require.NoError(t, err)
	assert.Equal(t, 50.0, attempt.Taken.Score)
	assert.Equal(t, classroom.LevelSuccess, attempt.MessageLevel)
	assert.Equal(t, "Congratulations! You completed the requirement Algebra with success! You scored 50.0 points.", attempt.Message)
}

func TestTakeRequirement_ScoresOnlyItsQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, firstQs := f.requirement(t, "First", 2)
	second, secondQs := f.requirement(t, "Second", 1)

	_, err := f.svc.TakeRequirement(ctx, f.student, first.ID, submit(firstQs[0].Answers[0].ID))
	require.NoError(t, err)
	attempt, err := f.svc.TakeRequirement(ctx, f.student, second.ID, submit(secondQs[0].Answers[1].ID))
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeCompleted, attempt.Outcome)
	assert.Equal(t, 0.0, attempt.Taken.Score)

	state, err := f.svc.AttemptState(ctx, f.student, first.ID)
	require.NoError(t, err)
	assert.Equal(t, classroom.StateInProgress, state)
}

func TestTakeRequirement_Progress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, _ := f.requirement(t, "Algebra", 5)

	last := -1
	for remaining := 5; remaining > 0; remaining-- {
		attempt, err := f.svc.TakeRequirement(ctx, f.student, req.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, remaining, attempt.Unanswered)
		assert.GreaterOrEqual(t, attempt.Progress, last)
		assert.LessOrEqual(t, attempt.Progress, 100)
		last = attempt.Progress

		q, err := f.svc.GetQuestion(ctx, f.teacher, req.ID, attempt.Question.ID)
		require.NoError(t, err)
		_, err = f.svc.TakeRequirement(ctx, f.student, req.ID, submit(q.Answers[0].ID))
		require.NoError(t, err)
	}
	assert.Equal(t, 100, last)

	taken, err := f.svc.ListFinished(ctx, f.student)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, 100.0, taken[0].Score)
}

func TestTakeRequirement_WarningMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, qs := f.requirement(t, "Algebra", 1)

	attempt, err := f.svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[0].Answers[1].ID))
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeCompleted, attempt.Outcome)
	assert.Equal(t, classroom.LevelWarning, attempt.MessageLevel)
	assert.Equal(t, "Better luck next time! Your score for the requirement Algebra was 0.0.", attempt.Message)
}

func TestTakeRequirement_InvalidAnswer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, qs := f.requirement(t, "Algebra", 2)

	// answer of a question not presented
	_, err := f.svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[1].Answers[0].ID))
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "answer", verr.Fields[0].Field)

	_, err = f.svc.TakeRequirement(ctx, f.student, req.ID, submit(9999))
	_, ok = err.(*core.ValidationError)
	assert.True(t, ok)

	unanswered, err := f.svc.UnansweredQuestions(ctx, f.student, req.ID)
	require.NoError(t, err)
	assert.Len(t, unanswered, 2, "nothing is recorded")
}

func TestTakeRequirement_NoQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, _ := f.requirement(t, "Empty", 0)

	_, err := f.svc.TakeRequirement(ctx, f.student, req.ID, nil)
	assert.Equal(t, classroom.ErrNoQuestions, err)
	_, err = f.svc.TakeRequirement(ctx, f.student, req.ID, submit(1))
	assert.Equal(t, classroom.ErrNoQuestions, err)

	_, err = f.svc.TakeRequirement(ctx, f.student, 9999, nil)
	assert.Equal(t, classroom.ErrNotFound, err)
}

func TestTakeRequirement_LastQuestionDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, qs := f.requirement(t, "Algebra", 2)

	_, err := f.svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[0].Answers[0].ID))
	require.NoError(t, err)
	require.NoError(t, f.repo.DeleteQuestion(ctx, qs[1].ID))

	attempt, err := f.svc.TakeRequirement(ctx, f.student, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeCompleted, attempt.Outcome)
	assert.Equal(t, 100.0, attempt.Taken.Score)
}

func TestTakeRequirement_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, qs := f.requirement(t, "Algebra", 1)

	// completed concurrently: the last answer is rolled back along with the completion
	_, err := f.repo.CreateTakenRequirement(ctx, classroom.TakenRequirement{StudentID: f.student.ID, RequirementID: req.ID, Score: 10, Date: time.Now().UTC()})
	require.NoError(t, err)
	repo := &takenOnceRepository{Repository: f.repo}
	svc := classroom.NewService(repo, f.mailSvc, testutil.NewLogger(testutil.NewConfig()))

	attempt, err := svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[0].Answers[0].ID))
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeAlreadyTaken, attempt.Outcome)
	assert.Equal(t, 10.0, attempt.Taken.Score)

	unanswered, err := f.repo.UnansweredQuestions(ctx, f.student.ID, req.ID)
	require.NoError(t, err)
	assert.Len(t, unanswered, 1)
	assert.Empty(t, f.mailSvc.SentMessages())
}

// takenOnceRepository hides the first lookup of a completed attempt, as if it was completed concurrently.
type takenOnceRepository struct {
	classroom.Repository
	hidden bool
}

func (repo *takenOnceRepository) GetTakenRequirement(ctx context.Context, studentID, requirementID int64) (classroom.TakenRequirement, error) {
	if !repo.hidden {
		repo.hidden = true
		return classroom.TakenRequirement{}, classroom.ErrNotFound
	}
	return repo.Repository.GetTakenRequirement(ctx, studentID, requirementID)
}

func TestAttemptState_UnknownRequirement(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AttemptState(context.Background(), f.student, 9999)
	assert.Equal(t, classroom.ErrNotFound, err)
}

func TestTakeRequirement_RemainingQuestionDeletedWhileAnswering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, qs := f.requirement(t, "Algebra", 2)
	repo := &deletingRepository{Repository: f.repo, questionID: qs[1].ID}
	svc := classroom.NewService(repo, f.mailSvc, testutil.NewLogger(testutil.NewConfig()))

	attempt, err := svc.TakeRequirement(ctx, f.student, req.ID, submit(qs[0].Answers[0].ID))
	require.NoError(t, err)
	assert.Equal(t, classroom.OutcomeCompleted, attempt.Outcome)
	assert.Equal(t, 1, attempt.TotalQuestions)
	assert.Equal(t, 100.0, attempt.Taken.Score)
}

// deletingRepository deletes a question right after an answer is recorded, as if a teacher deleted it meanwhile.
type deletingRepository struct {
	classroom.Repository
	questionID int64
}

func (repo *deletingRepository) WithinTx(ctx context.Context, fn func(repo classroom.Repository) error) error {
	return repo.Repository.WithinTx(ctx, func(tx classroom.Repository) error {
		return fn(&deletingRepository{Repository: tx, questionID: repo.questionID})
	})
}

func (repo *deletingRepository) CreateStudentAnswer(ctx context.Context, sa classroom.StudentAnswer) (classroom.StudentAnswer, error) {
	sa, err := repo.Repository.CreateStudentAnswer(ctx, sa)
	if err != nil {
		return sa, err
	}
	return sa, repo.Repository.DeleteQuestion(ctx, repo.questionID)
}

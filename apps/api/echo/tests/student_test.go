package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/core/classroom"
	testutil "github.com/trezcool/trackle/tests"
)

func Test_studentApi_guards(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	subj := testutil.CreateSubject(t, e.repo, teacher, "Math")
	req := testutil.CreateRequirement(t, e.repo, teacher, subj, "Algebra", core.Today())
	q := testutil.CreateQuestion(t, e.repo, req, "1 + 1 ?", "2", "3")

	e.run(t, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/students",
			wantCode: http.StatusUnauthorized,
			wantData: errMissingToken,
		},
		{
			name:     "teacher",
			method:   http.MethodGet,
			path:     "/students",
			token:    e.token(t, teacher.User),
			wantCode: http.StatusForbidden,
			wantData: errPermissionDenied,
		},
		{
			name:     "teacher taking a requirement",
			method:   http.MethodPost,
			path:     fmt.Sprintf("/students/requirement/%d", req.ID),
			body:     classroom.SubmitAnswer{AnswerID: q.Answers[0].ID},
			token:    e.token(t, teacher.User),
			wantCode: http.StatusForbidden,
			wantData: errPermissionDenied,
		},
	})

	taken, err := e.repo.QueryTakenRequirements(context.Background(), classroom.TakenFilter{RequirementID: req.ID})
	require.NoError(t, err)
	assert.Empty(t, taken)
}

func Test_studentApi_subjects(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	student := testutil.CreateStudent(t, e.usrRepo, "student")
	math := testutil.CreateSubject(t, e.repo, teacher, "Math")
	history := testutil.CreateSubject(t, e.repo, teacher, "History")
	token := e.token(t, student.User)

	rec := e.do(http.MethodGet, "/students/subjects", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var subjects classroom.StudentSubjects
	decode(t, rec, &subjects)
	assert.Empty(t, subjects.SubjectIDs)
	assert.Len(t, subjects.Subjects, 2)

	e.run(t, []httpTest{
		{
			name:     "unknown subject",
			method:   http.MethodPut,
			path:     "/students/subjects",
			body:     classroom.UpdateStudentSubjects{SubjectIDs: []int64{math.ID, 999999}},
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"subject_ids": "select a valid choice"},
		},
	})
	ids, err := e.repo.GetStudentSubjectIDs(context.Background(), student.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	rec = e.do(http.MethodPut, "/students/subjects", token, classroom.UpdateStudentSubjects{SubjectIDs: []int64{math.ID, history.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &subjects)
	assert.ElementsMatch(t, []int64{math.ID, history.ID}, subjects.SubjectIDs)

	// replaced, not merged
	rec = e.do(http.MethodPut, "/students/subjects", token, classroom.UpdateStudentSubjects{SubjectIDs: []int64{history.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &subjects)
	assert.Equal(t, []int64{history.ID}, subjects.SubjectIDs)
}

func Test_studentApi_listAssignable(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	student := testutil.CreateStudent(t, e.usrRepo, "student")
	math := testutil.CreateSubject(t, e.repo, teacher, "Math")
	history := testutil.CreateSubject(t, e.repo, teacher, "History")
	today := core.Today()
	testutil.CreateRequirement(t, e.repo, teacher, math, "Geometry", today.AddDate(0, 0, 7))
	testutil.CreateRequirement(t, e.repo, teacher, math, "Algebra", today)
	testutil.CreateRequirement(t, e.repo, teacher, math, "Past", today.AddDate(0, 0, -1))
	testutil.CreateRequirement(t, e.repo, teacher, history, "Wars", today)
	token := e.token(t, student.User)

	checkCodeAndData(t, http.StatusOK, []interface{}{}, e.do(http.MethodGet, "/students", token))

	testutil.Enrol(t, e.repo, student, math)
	rec := e.do(http.MethodGet, "/students", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reqs []classroom.Requirement
	decode(t, rec, &reqs)
	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Algebra", "Geometry"}, names)
}

func Test_studentApi_takeRequirement(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	student := testutil.CreateStudent(t, e.usrRepo, "student")
	subj := testutil.CreateSubject(t, e.repo, teacher, "Math")
	req := testutil.CreateRequirement(t, e.repo, teacher, subj, "Algebra", core.Today())
	qB := testutil.CreateQuestion(t, e.repo, req, "B question", "right", "wrong")
	qA := testutil.CreateQuestion(t, e.repo, req, "A question", "right", "wrong")
	token := e.token(t, student.User)
	path := fmt.Sprintf("/students/requirement/%d", req.ID)

	present := func() classroom.Attempt {
		rec := e.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var attempt classroom.Attempt
		decode(t, rec, &attempt)
		return attempt
	}

	// questions are presented by text
	attempt := present()
	assert.Equal(t, classroom.OutcomeQuestion, attempt.Outcome)
	assert.Equal(t, classroom.StateNotStarted, attempt.State)
	assert.Equal(t, 50, attempt.Progress)
	require.NotNil(t, attempt.Question)
	assert.Equal(t, qA.ID, attempt.Question.ID)
	assert.NotContains(t, e.do(http.MethodGet, path, token).Body.String(), "is_correct")

	e.run(t, []httpTest{
		{
			name:     "missing answer",
			method:   http.MethodPost,
			path:     path,
			body:     "{}",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"answer": "this field is required"},
		},
		{
			name:     "answer of another question",
			method:   http.MethodPost,
			path:     path,
			body:     classroom.SubmitAnswer{AnswerID: qB.Answers[0].ID},
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"answer": "select a valid choice"},
		},
		{
			name:     "unknown requirement",
			method:   http.MethodGet,
			path:     "/students/requirement/999999",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: errNotFound,
		},
	})

	// answering advances to the next question
	rec := e.do(http.MethodPost, path, token, classroom.SubmitAnswer{AnswerID: qA.Answers[1].ID})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, path, rec.Header().Get("Location"))

	attempt = present()
	assert.Equal(t, classroom.StateInProgress, attempt.State)
	assert.Equal(t, 100, attempt.Progress)
	require.NotNil(t, attempt.Question)
	assert.Equal(t, qB.ID, attempt.Question.ID)

	// the last answer completes the requirement
	rec = e.do(http.MethodPost, path, token, classroom.SubmitAnswer{AnswerID: qB.Answers[0].ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &attempt)
	assert.Equal(t, classroom.OutcomeCompleted, attempt.Outcome)
	assert.Equal(t, classroom.StateCompleted, attempt.State)
	require.NotNil(t, attempt.Taken)
	assert.Equal(t, 50.0, attempt.Taken.Score)
	assert.Equal(t, "Congratulations! You completed the requirement Algebra with success! You scored 50.0 points.", attempt.Message)
	assert.Equal(t, classroom.LevelSuccess, attempt.MessageLevel)

	msgs := e.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, student.Email, msgs[0].To[0].Address)

	// completed requirements are not taken twice
	attempt = present()
	assert.Equal(t, classroom.OutcomeAlreadyTaken, attempt.Outcome)
	rec = e.do(http.MethodPost, path, token, classroom.SubmitAnswer{AnswerID: qB.Answers[1].ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &attempt)
	assert.Equal(t, classroom.OutcomeAlreadyTaken, attempt.Outcome)
	assert.Equal(t, 50.0, attempt.Taken.Score)
	assert.Len(t, e.mailSvc.SentMessages(), 1)

	rec = e.do(http.MethodGet, "/students/finished", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var finished []classroom.TakenRequirement
	decode(t, rec, &finished)
	require.Len(t, finished, 1)
	assert.Equal(t, req.ID, finished[0].RequirementID)
	require.NotNil(t, finished[0].Requirement)
	require.NotNil(t, finished[0].Requirement.Subject)
	assert.Equal(t, "Math", finished[0].Requirement.Subject.Name)
}

func Test_studentApi_takeRequirement_warning(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	student := testutil.CreateStudent(t, e.usrRepo, "student")
	subj := testutil.CreateSubject(t, e.repo, teacher, "Math")
	req := testutil.CreateRequirement(t, e.repo, teacher, subj, "Algebra", core.Today())
	q := testutil.CreateQuestion(t, e.repo, req, "1 + 1 ?", "2", "3")

	rec := e.do(http.MethodPost, fmt.Sprintf("/students/requirement/%d", req.ID), e.token(t, student.User), classroom.SubmitAnswer{AnswerID: q.Answers[1].ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var attempt classroom.Attempt
	decode(t, rec, &attempt)
	assert.Equal(t, "Better luck next time! Your score for the requirement Algebra was 0.0.", attempt.Message)
	assert.Equal(t, classroom.LevelWarning, attempt.MessageLevel)
}

func Test_studentApi_takeRequirement_noQuestions(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	student := testutil.CreateStudent(t, e.usrRepo, "student")
	subj := testutil.CreateSubject(t, e.repo, teacher, "Math")
	req := testutil.CreateRequirement(t, e.repo, teacher, subj, "Empty", core.Today())
	token := e.token(t, student.User)
	path := fmt.Sprintf("/students/requirement/%d", req.ID)

	noQuestions := httpErr{Error: classroom.ErrNoQuestions.Error()}
	checkCodeAndData(t, http.StatusConflict, noQuestions, e.do(http.MethodGet, path, token))
	checkCodeAndData(t, http.StatusConflict, noQuestions, e.do(http.MethodPost, path, token, classroom.SubmitAnswer{AnswerID: 1}))

	taken, err := e.repo.QueryTakenRequirements(context.Background(), classroom.TakenFilter{StudentID: student.ID})
	require.NoError(t, err)
	assert.Empty(t, taken)
}

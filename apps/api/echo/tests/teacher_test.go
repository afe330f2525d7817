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
	"github.com/trezcool/trackle/core/user"
	testutil "github.com/trezcool/trackle/tests"
)

func Test_teacherApi_guards(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "student")

	e.run(t, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/teachers",
			wantCode: http.StatusUnauthorized,
			wantData: errMissingToken,
		},
		{
			name:     "student",
			method:   http.MethodGet,
			path:     "/teachers",
			token:    e.token(t, student.User),
			wantCode: http.StatusForbidden,
			wantData: errPermissionDenied,
		},
		{
			name:     "student on subjects",
			method:   http.MethodPost,
			path:     "/teachers/subjects/add",
			body:     classroom.NewSubject{Name: "Math"},
			token:    e.token(t, student.User),
			wantCode: http.StatusForbidden,
			wantData: errPermissionDenied,
		},
	})

	subjects, err := e.repo.QuerySubjects(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func Test_teacherApi_subjects(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	other := testutil.CreateTeacher(t, e.usrRepo, "other")
	testutil.CreateSubject(t, e.repo, other, "History")
	token := e.token(t, teacher.User)

	e.run(t, []httpTest{
		{
			name:     "blank name",
			method:   http.MethodPost,
			path:     "/teachers/subjects/add",
			body:     classroom.NewSubject{Name: "  "},
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad color",
			method:   http.MethodPost,
			path:     "/teachers/subjects/add",
			body:     classroom.NewSubject{Name: "Math", Color: "blue"},
			token:    token,
			wantCode: http.StatusBadRequest,
		},
	})

	rec := e.do(http.MethodPost, "/teachers/subjects/add", token, classroom.NewSubject{Name: " Math "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var subj classroom.Subject
	decode(t, rec, &subj)
	assert.Equal(t, "Math", subj.Name)
	assert.Equal(t, classroom.DefaultSubjectColor, subj.Color)
	assert.Equal(t, teacher.ID, subj.TeacherID)

	rec = e.do(http.MethodPost, "/teachers/subjects/add", token, classroom.NewSubject{Name: "Biology", Color: "#28A745"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, "/teachers/subjects", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var subjects []classroom.Subject
	decode(t, rec, &subjects)
	require.Len(t, subjects, 2)
	assert.Equal(t, "Biology", subjects[0].Name)
	assert.Equal(t, "#28a745", subjects[0].Color)
	assert.Equal(t, "Math", subjects[1].Name)
}

func Test_teacherApi_requirements(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	other := testutil.CreateTeacher(t, e.usrRepo, "other")
	subj := testutil.CreateSubject(t, e.repo, teacher, "Math")
	otherSubj := testutil.CreateSubject(t, e.repo, other, "History")
	otherReq := testutil.CreateRequirement(t, e.repo, other, otherSubj, "Wars", core.Today())
	token := e.token(t, teacher.User)

	due := core.Today().AddDate(0, 0, 7).Format("2006-01-02")
	e.run(t, []httpTest{
		{
			name:     "empty list",
			method:   http.MethodGet,
			path:     "/teachers",
			token:    token,
			wantCode: http.StatusOK,
			wantData: []interface{}{},
		},
		{
			name:     "subject of another teacher",
			method:   http.MethodPost,
			path:     "/teachers/requirement/add",
			body:     classroom.NewRequirement{Name: "Algebra", SubjectID: otherSubj.ID, DueDate: due},
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"subject_id": "select a valid choice"},
		},
		{
			name:     "bad due date",
			method:   http.MethodPost,
			path:     "/teachers/requirement/add",
			body:     classroom.NewRequirement{Name: "Algebra", SubjectID: subj.ID, DueDate: "next week"},
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "requirement of another teacher",
			method:   http.MethodGet,
			path:     fmt.Sprintf("/teachers/requirement/%d", otherReq.ID),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: errNotFound,
		},
		{
			name:     "delete requirement of another teacher",
			method:   http.MethodDelete,
			path:     fmt.Sprintf("/teachers/requirement/%d/delete", otherReq.ID),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: errNotFound,
		},
		{
			name:     "malformed id",
			method:   http.MethodGet,
			path:     "/teachers/requirement/abc",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: errNotFound,
		},
	})

	var algebra, geometry classroom.Requirement
	rec := e.do(http.MethodPost, "/teachers/requirement/add", token, classroom.NewRequirement{Name: "Geometry", SubjectID: subj.ID, DueDate: due})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &geometry)
	rec = e.do(http.MethodPost, "/teachers/requirement/add", token, classroom.NewRequirement{Name: "Algebra", SubjectID: subj.ID, DueDate: due})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &algebra)
	assert.Equal(t, teacher.ID, algebra.OwnerID)
	assert.Equal(t, due, algebra.DueDate.Format("2006-01-02"))
	require.NotNil(t, algebra.Subject)
	assert.Equal(t, "Math", algebra.Subject.Name)

	names := func(path string) []string {
		rec := e.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var reqs []classroom.Requirement
		decode(t, rec, &reqs)
		res := make([]string, 0, len(reqs))
		for _, r := range reqs {
			res = append(res, r.Name)
		}
		return res
	}
	assert.Equal(t, []string{"Algebra", "Geometry"}, names("/teachers"))
	assert.Equal(t, []string{"Geometry", "Algebra"}, names("/teachers?ordering=-name"))
	assert.Equal(t, []string{"Geometry", "Algebra"}, names("/teachers?ordering=id"))
	assert.Equal(t, []string{"Algebra", "Geometry"}, names("/teachers?ordering=bogus,name"))

	// update
	subj2 := testutil.CreateSubject(t, e.repo, teacher, "Physics")
	rec = e.do(http.MethodPut, fmt.Sprintf("/teachers/requirement/%d", algebra.ID), token, classroom.UpdateRequirement{Name: "Linear Algebra", SubjectID: subj2.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated classroom.Requirement
	decode(t, rec, &updated)
	assert.Equal(t, "Linear Algebra", updated.Name)
	assert.Equal(t, subj2.ID, updated.SubjectID)
	assert.Equal(t, algebra.DueDate, updated.DueDate)

	// delete
	rec = e.do(http.MethodDelete, fmt.Sprintf("/teachers/requirement/%d/delete", geometry.ID), token)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	_, err := e.repo.GetRequirement(context.Background(), geometry.ID)
	assert.Equal(t, classroom.ErrNotFound, err)
	assert.Equal(t, []string{"Linear Algebra"}, names("/teachers"))
}

func Test_teacherApi_questions(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	subj := testutil.CreateSubject(t, e.repo, teacher, "Math")
	req := testutil.CreateRequirement(t, e.repo, teacher, subj, "Algebra", core.Today())
	otherReq := testutil.CreateRequirement(t, e.repo, teacher, subj, "Geometry", core.Today())
	token := e.token(t, teacher.User)
	reqPath := fmt.Sprintf("/teachers/requirement/%d", req.ID)

	rec := e.do(http.MethodPost, reqPath+"/question/add", token, classroom.NewQuestion{Text: "1 + 1 ?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q classroom.Question
	decode(t, rec, &q)
	assert.Equal(t, req.ID, q.RequirementID)
	qPath := fmt.Sprintf("%s/question/%d", reqPath, q.ID)

	e.run(t, []httpTest{
		{
			name:     "blank question",
			method:   http.MethodPost,
			path:     reqPath + "/question/add",
			body:     classroom.NewQuestion{Text: ""},
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"text": "this field is required"},
		},
		{
			name:     "question of another requirement",
			method:   http.MethodGet,
			path:     fmt.Sprintf("/teachers/requirement/%d/question/%d", otherReq.ID, q.ID),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: errNotFound,
		},
		{
			name:   "too few answers",
			method: http.MethodPut,
			path:   qPath,
			body: classroom.UpdateQuestion{Text: "1 + 1 ?", Answers: []classroom.AnswerInput{
				{Text: "2", IsCorrect: true},
			}},
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:   "no correct answer",
			method: http.MethodPut,
			path:   qPath,
			body: classroom.UpdateQuestion{Text: "1 + 1 ?", Answers: []classroom.AnswerInput{
				{Text: "2"}, {Text: "3"},
			}},
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"answers": "mark at least one answer as correct"},
		},
	})

	// answers are created...
	rec = e.do(http.MethodPut, qPath, token, classroom.UpdateQuestion{Text: "1 + 1 = ?", Answers: []classroom.AnswerInput{
		{Text: "2", IsCorrect: true}, {Text: "3"}, {Text: "11"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &q)
	assert.Equal(t, "1 + 1 = ?", q.Text)
	require.Len(t, q.Answers, 3)

	// ...then updated, added & removed at once
	rec = e.do(http.MethodPut, qPath, token, classroom.UpdateQuestion{Text: "1 + 1 = ?", Answers: []classroom.AnswerInput{
		{ID: q.Answers[0].ID, Text: "two", IsCorrect: true},
		{ID: q.Answers[1].ID, Text: "three"},
		{Text: "zero"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, qPath, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got classroom.Question
	decode(t, rec, &got)
	require.Len(t, got.Answers, 3)
	texts := map[string]bool{}
	for _, a := range got.Answers {
		texts[a.Text] = a.IsCorrect
	}
	assert.Equal(t, map[string]bool{"two": true, "three": false, "zero": false}, texts)

	// unknown answer ids are refused, nothing changes
	rec = e.do(http.MethodPut, qPath, token, classroom.UpdateQuestion{Text: "changed", Answers: []classroom.AnswerInput{
		{ID: 999999, Text: "two", IsCorrect: true}, {Text: "three"},
	}})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = e.do(http.MethodGet, qPath, token)
	decode(t, rec, &got)
	assert.Equal(t, "1 + 1 = ?", got.Text)
	assert.Len(t, got.Answers, 3)

	// requirement detail lists questions with their answers count
	rec = e.do(http.MethodGet, reqPath, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail classroom.RequirementDetail
	decode(t, rec, &detail)
	assert.Equal(t, req.ID, detail.ID)
	require.Len(t, detail.Questions, 1)
	assert.Equal(t, 3, detail.Questions[0].AnswersCount)

	// delete
	rec = e.do(http.MethodDelete, qPath+"/delete", token)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	answers, err := e.repo.QueryAnswers(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)
	checkCodeAndData(t, http.StatusNotFound, errNotFound, e.do(http.MethodGet, qPath, token))
}

func Test_teacherApi_requirementResults(t *testing.T) {
	e := setup(t)
	teacher := testutil.CreateTeacher(t, e.usrRepo, "teacher")
	subj := testutil.CreateSubject(t, e.repo, teacher, "Math")
	req := testutil.CreateRequirement(t, e.repo, teacher, subj, "Algebra", core.Today())
	q := testutil.CreateQuestion(t, e.repo, req, "1 + 1 ?", "2", "3")

	for i, ans := range []classroom.Answer{q.Answers[0], q.Answers[1]} {
		student := testutil.CreateUser(t, e.usrRepo, fmt.Sprintf("Student %d", i), fmt.Sprintf("student%d", i), "", user.RoleStudent)
		rec := e.do(http.MethodPost, fmt.Sprintf("/students/requirement/%d", req.ID), e.token(t, student), classroom.SubmitAnswer{AnswerID: ans.ID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := e.do(http.MethodGet, fmt.Sprintf("/teachers/requirement/%d/results", req.ID), e.token(t, teacher.User))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var results classroom.RequirementResults
	decode(t, rec, &results)
	assert.Equal(t, 2, results.TakenCount)
	assert.Equal(t, 50.0, results.AverageScore)
	require.Len(t, results.Taken, 2)
	assert.ElementsMatch(t, []string{"Student 0", "Student 1"}, []string{results.Taken[0].StudentName, results.Taken[1].StudentName})
}

package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/trackle/core/classroom"
	"github.com/trezcool/trackle/storage/database"
)

var (
	requirementColumns = []string{
		"r.id", "r.owner_id", "r.subject_id", "r.name", "r.due_date",
		"s.teacher_id AS subject_teacher_id", "s.name AS subject_name", "s.color AS subject_color",
	}
	takenColumns = []string{
		"t.id", "t.student_id", "t.requirement_id", "t.score", "t.date",
		"r.owner_id AS r_owner_id", "r.subject_id AS r_subject_id", "r.name AS r_name", "r.due_date AS r_due_date",
		"s.teacher_id AS subject_teacher_id", "s.name AS subject_name", "s.color AS subject_color",
		"u.name AS u_name", "u.username AS u_username",
	}
)

type subjectCols struct {
	SubjectTeacherID int64  `db:"subject_teacher_id"`
	SubjectName      string `db:"subject_name"`
	SubjectColor     string `db:"subject_color"`
}

func (c subjectCols) subject(id int64) *classroom.Subject {
	return &classroom.Subject{ID: id, TeacherID: c.SubjectTeacherID, Name: c.SubjectName, Color: c.SubjectColor}
}

type requirementRow struct {
	classroom.Requirement
	subjectCols
}

func (row requirementRow) requirement() classroom.Requirement {
	req := row.Requirement
	req.DueDate = req.DueDate.UTC()
	req.Subject = row.subject(req.SubjectID)
	return req
}

type takenRow struct {
	classroom.TakenRequirement
	subjectCols
	ReqOwnerID   int64     `db:"r_owner_id"`
	ReqSubjectID int64     `db:"r_subject_id"`
	ReqName      string    `db:"r_name"`
	ReqDueDate   time.Time `db:"r_due_date"`
	UserName     string    `db:"u_name"`
	UserUsername string    `db:"u_username"`
}

func (row takenRow) taken() classroom.TakenRequirement {
	tr := row.TakenRequirement
	tr.Date = tr.Date.UTC()
	tr.Requirement = &classroom.Requirement{
		ID:        tr.RequirementID,
		OwnerID:   row.ReqOwnerID,
		SubjectID: row.ReqSubjectID,
		Name:      row.ReqName,
		DueDate:   row.ReqDueDate.UTC(),
		Subject:   row.subject(row.ReqSubjectID),
	}
	tr.StudentName = row.UserName
	if tr.StudentName == "" {
		tr.StudentName = row.UserUsername
	}
	return tr
}

type classroomRepository struct {
	base
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sqlx.DB) *classroomRepository {
	return &classroomRepository{base: newBase(db)}
}

func (repo classroomRepository) WithinTx(ctx context.Context, fn func(repo classroom.Repository) error) error {
	return repo.runInTx(ctx, func(b base) error {
		return fn(&classroomRepository{base: b})
	})
}

// Subjects

func (repo classroomRepository) CreateSubject(ctx context.Context, subj classroom.Subject) (classroom.Subject, error) {
	id, err := repo.insert(ctx, repo.sb.Insert("subjects").
		Columns("teacher_id", "name", "color").
		Values(subj.TeacherID, subj.Name, subj.Color))
	if err != nil {
		return classroom.Subject{}, errors.Wrap(err, "inserting subject")
	}
	subj.ID = id
	return subj, nil
}

func (repo classroomRepository) GetSubject(ctx context.Context, id int64) (classroom.Subject, error) {
	var subj classroom.Subject
	err := repo.get(ctx, &subj, repo.sb.Select("id", "teacher_id", "name", "color").From("subjects").Where(sq.Eq{"id": id}))
	if err != nil {
		return classroom.Subject{}, trapNoRowsErr(err, classroom.ErrNotFound, "finding subject")
	}
	return subj, nil
}

func (repo classroomRepository) QuerySubjects(ctx context.Context, teacherID int64) ([]classroom.Subject, error) {
	q := repo.sb.Select("id", "teacher_id", "name", "color").From("subjects").OrderBy("name", "id")
	if teacherID != 0 {
		q = q.Where(sq.Eq{"teacher_id": teacherID})
	}
	subjects := make([]classroom.Subject, 0)
	if err := repo.sel(ctx, &subjects, q); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjects, nil
}

func (repo classroomRepository) GetStudentSubjectIDs(ctx context.Context, studentID int64) ([]int64, error) {
	ids := make([]int64, 0)
	err := repo.sel(ctx, &ids, repo.sb.Select("subject_id").
		From("student_subjects").
		Where(sq.Eq{"student_id": studentID}).
		OrderBy("subject_id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying student subjects")
	}
	return ids, nil
}

func (repo classroomRepository) SetStudentSubjects(ctx context.Context, studentID int64, subjectIDs []int64) error {
	return repo.runInTx(ctx, func(b base) error {
		if _, err := b.run(ctx, b.sb.Delete("student_subjects").Where(sq.Eq{"student_id": studentID})); err != nil {
			return errors.Wrap(err, "clearing student subjects")
		}
		if len(subjectIDs) == 0 {
			return nil
		}
		q := b.sb.Insert("student_subjects").Columns("student_id", "subject_id")
		for _, id := range subjectIDs {
			q = q.Values(studentID, id)
		}
		_, err := b.run(ctx, q)
		return errors.Wrap(err, "inserting student subjects")
	})
}

// Requirements

func (repo classroomRepository) selectRequirements() sq.SelectBuilder {
	return repo.sb.Select(requirementColumns...).
		From("requirements r").
		Join("subjects s ON s.id = r.subject_id")
}

func (repo classroomRepository) CreateRequirement(ctx context.Context, req classroom.Requirement) (classroom.Requirement, error) {
	id, err := repo.insert(ctx, repo.sb.Insert("requirements").
		Columns("owner_id", "subject_id", "name", "due_date").
		Values(req.OwnerID, req.SubjectID, req.Name, req.DueDate.UTC()))
	if err != nil {
		return classroom.Requirement{}, errors.Wrap(err, "inserting requirement")
	}
	req.ID = id
	return req, nil
}

func (repo classroomRepository) GetRequirement(ctx context.Context, id int64) (classroom.Requirement, error) {
	var row requirementRow
	if err := repo.get(ctx, &row, repo.selectRequirements().Where(sq.Eq{"r.id": id})); err != nil {
		return classroom.Requirement{}, trapNoRowsErr(err, classroom.ErrNotFound, "finding requirement")
	}
	return row.requirement(), nil
}

func (repo classroomRepository) QueryRequirements(ctx context.Context, filter classroom.RequirementFilter) ([]classroom.Requirement, error) {
	q := repo.selectRequirements()
	if filter.OwnerID != 0 {
		q = q.Where(sq.Eq{"r.owner_id": filter.OwnerID})
	}
	if filter.SubjectIDs != nil {
		q = q.Where(sq.Eq{"r.subject_id": filter.SubjectIDs})
	}
	if !filter.DueFrom.IsZero() {
		q = q.Where(sq.GtOrEq{"r.due_date": filter.DueFrom.UTC()})
	}
	for _, ord := range filter.Ordering {
		q = q.OrderBy("r." + ord.String())
	}
	q = q.OrderBy("r.id")

	var rows []requirementRow
	if err := repo.sel(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying requirements")
	}
	reqs := make([]classroom.Requirement, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.requirement())
	}
	return reqs, nil
}

func (repo classroomRepository) UpdateRequirement(ctx context.Context, req classroom.Requirement) (classroom.Requirement, error) {
	res, err := repo.run(ctx, repo.sb.Update("requirements").
		Set("name", req.Name).
		Set("subject_id", req.SubjectID).
		Set("due_date", req.DueDate.UTC()).
		Where(sq.Eq{"id": req.ID}))
	if err != nil {
		return classroom.Requirement{}, errors.Wrap(err, "updating requirement")
	}
	return req, affected(res, classroom.ErrNotFound)
}

func (repo classroomRepository) DeleteRequirement(ctx context.Context, id int64) error {
	res, err := repo.run(ctx, repo.sb.Delete("requirements").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting requirement")
	}
	return affected(res, classroom.ErrNotFound)
}

// Questions

func (repo classroomRepository) CreateQuestion(ctx context.Context, q classroom.Question) (classroom.Question, error) {
	id, err := repo.insert(ctx, repo.sb.Insert("questions").
		Columns("requirement_id", "text").
		Values(q.RequirementID, q.Text))
	if err != nil {
		return classroom.Question{}, errors.Wrap(err, "inserting question")
	}
	q.ID = id
	return q, nil
}

func (repo classroomRepository) GetQuestion(ctx context.Context, id int64) (classroom.Question, error) {
	var q classroom.Question
	err := repo.get(ctx, &q, repo.sb.Select("id", "requirement_id", "text").From("questions").Where(sq.Eq{"id": id}))
	if err != nil {
		return classroom.Question{}, trapNoRowsErr(err, classroom.ErrNotFound, "finding question")
	}
	return q, nil
}

func (repo classroomRepository) QueryQuestions(ctx context.Context, requirementID int64) ([]classroom.Question, error) {
	questions := make([]classroom.Question, 0)
	err := repo.sel(ctx, &questions, repo.sb.
		Select("q.id", "q.requirement_id", "q.text",
			"(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id) AS answers_count").
		From("questions q").
		Where(sq.Eq{"q.requirement_id": requirementID}).
		OrderBy("q.id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return questions, nil
}

func (repo classroomRepository) CountQuestions(ctx context.Context, requirementID int64) (int, error) {
	var n int
	err := repo.get(ctx, &n, repo.sb.Select("COUNT(*)").From("questions").Where(sq.Eq{"requirement_id": requirementID}))
	return n, errors.Wrap(err, "counting questions")
}

func (repo classroomRepository) UpdateQuestion(ctx context.Context, q classroom.Question) (classroom.Question, error) {
	res, err := repo.run(ctx, repo.sb.Update("questions").Set("text", q.Text).Where(sq.Eq{"id": q.ID}))
	if err != nil {
		return classroom.Question{}, errors.Wrap(err, "updating question")
	}
	return q, affected(res, classroom.ErrNotFound)
}

func (repo classroomRepository) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := repo.run(ctx, repo.sb.Delete("questions").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return affected(res, classroom.ErrNotFound)
}

// Answers

func (repo classroomRepository) GetAnswer(ctx context.Context, id int64) (classroom.Answer, error) {
	var ans classroom.Answer
	err := repo.get(ctx, &ans, repo.sb.Select("id", "question_id", "text", "is_correct").From("answers").Where(sq.Eq{"id": id}))
	if err != nil {
		return classroom.Answer{}, trapNoRowsErr(err, classroom.ErrNotFound, "finding answer")
	}
	return ans, nil
}

func (repo classroomRepository) QueryAnswers(ctx context.Context, questionIDs ...int64) ([]classroom.Answer, error) {
	answers := make([]classroom.Answer, 0)
	if len(questionIDs) == 0 {
		return answers, nil
	}
	err := repo.sel(ctx, &answers, repo.sb.Select("id", "question_id", "text", "is_correct").
		From("answers").
		Where(sq.Eq{"question_id": questionIDs}).
		OrderBy("id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	return answers, nil
}

func (repo classroomRepository) CreateAnswer(ctx context.Context, ans classroom.Answer) (classroom.Answer, error) {
	id, err := repo.insert(ctx, repo.sb.Insert("answers").
		Columns("question_id", "text", "is_correct").
		Values(ans.QuestionID, ans.Text, ans.IsCorrect))
	if err != nil {
		return classroom.Answer{}, errors.Wrap(err, "inserting answer")
	}
	ans.ID = id
	return ans, nil
}

func (repo classroomRepository) UpdateAnswer(ctx context.Context, ans classroom.Answer) (classroom.Answer, error) {
	res, err := repo.run(ctx, repo.sb.Update("answers").
		Set("text", ans.Text).
		Set("is_correct", ans.IsCorrect).
		Where(sq.Eq{"id": ans.ID, "question_id": ans.QuestionID}))
	if err != nil {
		return classroom.Answer{}, errors.Wrap(err, "updating answer")
	}
	return ans, affected(res, classroom.ErrNotFound)
}

func (repo classroomRepository) DeleteAnswers(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.run(ctx, repo.sb.Delete("answers").Where(sq.Eq{"id": ids}))
	return errors.Wrap(err, "deleting answers")
}

// Attempts

func (repo classroomRepository) UnansweredQuestions(ctx context.Context, studentID, requirementID int64) ([]classroom.Question, error) {
	questions := make([]classroom.Question, 0)
	err := repo.sel(ctx, &questions, repo.sb.Select("q.id", "q.requirement_id", "q.text").
		From("questions q").
		Where(sq.Eq{"q.requirement_id": requirementID}).
		Where("NOT EXISTS (SELECT 1 FROM student_answers sa WHERE sa.question_id = q.id AND sa.student_id = ?)", studentID).
		OrderBy("q.text", "q.id"))
	if err != nil {
		return nil, errors.Wrap(err, "querying unanswered questions")
	}
	return questions, nil
}

func (repo classroomRepository) CreateStudentAnswer(ctx context.Context, sa classroom.StudentAnswer) (classroom.StudentAnswer, error) {
	id, err := repo.insert(ctx, repo.sb.Insert("student_answers").
		Columns("student_id", "answer_id", "question_id").
		Values(sa.StudentID, sa.AnswerID, sa.QuestionID))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return classroom.StudentAnswer{}, classroom.ErrAlreadyAnswered
		}
		return classroom.StudentAnswer{}, errors.Wrap(err, "inserting student answer")
	}
	sa.ID = id
	return sa, nil
}

func (repo classroomRepository) CountCorrectAnswers(ctx context.Context, studentID, requirementID int64) (int, error) {
	var n int
	err := repo.get(ctx, &n, repo.sb.Select("COUNT(*)").
		From("student_answers sa").
		Join("answers a ON a.id = sa.answer_id").
		Join("questions q ON q.id = sa.question_id").
		Where(sq.Eq{"sa.student_id": studentID, "q.requirement_id": requirementID, "a.is_correct": true}))
	return n, errors.Wrap(err, "counting correct answers")
}

func (repo classroomRepository) CreateTakenRequirement(ctx context.Context, tr classroom.TakenRequirement) (classroom.TakenRequirement, error) {
	id, err := repo.insert(ctx, repo.sb.Insert("taken_requirements").
		Columns("student_id", "requirement_id", "score", "date").
		Values(tr.StudentID, tr.RequirementID, tr.Score, tr.Date.UTC()))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return classroom.TakenRequirement{}, classroom.ErrAlreadyTaken
		}
		return classroom.TakenRequirement{}, errors.Wrap(err, "inserting taken requirement")
	}
	tr.ID = id
	return tr, nil
}

func (repo classroomRepository) selectTaken() sq.SelectBuilder {
	return repo.sb.Select(takenColumns...).
		From("taken_requirements t").
		Join("requirements r ON r.id = t.requirement_id").
		Join("subjects s ON s.id = r.subject_id").
		Join("users u ON u.id = t.student_id")
}

func (repo classroomRepository) GetTakenRequirement(ctx context.Context, studentID, requirementID int64) (classroom.TakenRequirement, error) {
	var row takenRow
	err := repo.get(ctx, &row, repo.selectTaken().Where(sq.Eq{"t.student_id": studentID, "t.requirement_id": requirementID}))
	if err != nil {
		return classroom.TakenRequirement{}, trapNoRowsErr(err, classroom.ErrNotFound, "finding taken requirement")
	}
	return row.taken(), nil
}

func (repo classroomRepository) QueryTakenRequirements(ctx context.Context, filter classroom.TakenFilter) ([]classroom.TakenRequirement, error) {
	q := repo.selectTaken().OrderBy("r.name", "t.date", "t.id")
	if filter.StudentID != 0 {
		q = q.Where(sq.Eq{"t.student_id": filter.StudentID})
	}
	if filter.RequirementID != 0 {
		q = q.Where(sq.Eq{"t.requirement_id": filter.RequirementID})
	}

	var rows []takenRow
	if err := repo.sel(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying taken requirements")
	}
	taken := make([]classroom.TakenRequirement, 0, len(rows))
	for _, row := range rows {
		taken = append(taken, row.taken())
	}
	return taken, nil
}

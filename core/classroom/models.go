package classroom

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/trackle/core"
)

const DefaultSubjectColor = "#007bff"

type (
	Subject struct {
		ID        int64  `json:"id" db:"id"`
		TeacherID int64  `json:"teacher_id" db:"teacher_id"`
		Name      string `json:"name" db:"name"`
		Color     string `json:"color" db:"color"`
	}

	Requirement struct {
		ID        int64     `json:"id" db:"id"`
		OwnerID   int64     `json:"owner_id" db:"owner_id"`
		SubjectID int64     `json:"subject_id" db:"subject_id"`
		Name      string    `json:"name" db:"name"`
		DueDate   time.Time `json:"due_date" db:"due_date"` // UTC date
		Subject   *Subject  `json:"subject,omitempty" db:"-"`
	}

	Question struct {
		ID            int64    `json:"id" db:"id"`
		RequirementID int64    `json:"requirement_id" db:"requirement_id"`
		Text          string   `json:"text" db:"text"`
		Answers       []Answer `json:"answers,omitempty" db:"-"`
		AnswersCount  int      `json:"answers_count" db:"answers_count"`
	}

	Answer struct {
		ID         int64  `json:"id" db:"id"`
		QuestionID int64  `json:"question_id" db:"question_id"`
		Text       string `json:"text" db:"text"`
		IsCorrect  bool   `json:"is_correct" db:"is_correct"`
	}

	// TakenRequirement is a completed attempt of a Requirement by a student.
	TakenRequirement struct {
		ID            int64        `json:"id" db:"id"`
		StudentID     int64        `json:"student_id" db:"student_id"`
		RequirementID int64        `json:"requirement_id" db:"requirement_id"`
		Score         float64      `json:"score" db:"score"`
		Date          time.Time    `json:"date" db:"date"` // UTC
		Requirement   *Requirement `json:"requirement,omitempty" db:"-"`
		StudentName   string       `json:"student_name,omitempty" db:"-"`
	}

	StudentAnswer struct {
		ID         int64 `json:"id" db:"id"`
		StudentID  int64 `json:"student_id" db:"student_id"`
		AnswerID   int64 `json:"answer_id" db:"answer_id"`
		QuestionID int64 `json:"question_id" db:"question_id"`
	}

	// RequirementFilter selects requirements. Zero values are ignored.
	RequirementFilter struct {
		OwnerID    int64
		SubjectIDs []int64
		DueFrom    time.Time // inclusive
		Ordering   []core.DBOrdering
	}

	// RequirementResults summarizes the completed attempts of a Requirement.
	RequirementResults struct {
		Requirement  Requirement        `json:"requirement"`
		Taken        []TakenRequirement `json:"taken_requirements"`
		TakenCount   int                `json:"taken_count"`
		AverageScore float64            `json:"average_score"`
	}

	// StudentSubjects is the subjects enrolment of a student.
	StudentSubjects struct {
		SubjectIDs []int64   `json:"subject_ids"`
		Subjects   []Subject `json:"subjects"` // every subject one may enrol to
	}
)

// RequirementOrderingFields maps the public ordering names to their columns.
var RequirementOrderingFields = map[string]string{
	"id":       "id",
	"name":     "name",
	"due_date": "due_date",
	"subject":  "subject_id",
}

// defaultRequirementOrdering orders requirements by due date, name, then subject.
var defaultRequirementOrdering = []core.DBOrdering{
	{Field: "due_date", Ascending: true},
	{Field: "name", Ascending: true},
	{Field: "subject_id", Ascending: true},
}

// Requests

type NewSubject struct {
	Name  string `json:"name" validate:"required,notblank,max=30"`
	Color string `json:"color" validate:"omitempty,hexcolor,len=7"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Color = core.CleanString(ns.Color, true /* lower */)
	return validate.Struct(ns)
}

type NewRequirement struct {
	Name      string `json:"name" validate:"required,notblank,max=255"`
	SubjectID int64  `json:"subject_id" validate:"required"`
	DueDate   string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

func (nr *NewRequirement) Validate(ctx context.Context, validate *validator.Validate, svc *Service, teacherID int64) error {
	nr.Name = core.CleanString(nr.Name)
	nr.DueDate = core.CleanString(nr.DueDate)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	return svc.checkSubjectOwnership(ctx, teacherID, nr.SubjectID)
}

func (nr NewRequirement) dueDate() time.Time {
	d, _ := time.Parse(dateLayout, nr.DueDate) // validated
	return d.UTC()
}

type UpdateRequirement struct {
	Name      string `json:"name" validate:"required,notblank,max=255"`
	SubjectID int64  `json:"subject_id" validate:"required"`
}

func (ur *UpdateRequirement) Validate(ctx context.Context, validate *validator.Validate, svc *Service, teacherID int64) error {
	ur.Name = core.CleanString(ur.Name)
	if err := validate.Struct(ur); err != nil {
		return err
	}
	return svc.checkSubjectOwnership(ctx, teacherID, ur.SubjectID)
}

type NewQuestion struct {
	Text string `json:"text" validate:"required,notblank,max=255"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Text = core.CleanString(nq.Text)
	return validate.Struct(nq)
}

// UpdateQuestion is a question along with its complete set of answers.
// Answers with an ID are updated, answers without are created and the missing ones deleted.
type UpdateQuestion struct {
	Text    string        `json:"text" validate:"required,notblank,max=255"`
	Answers []AnswerInput `json:"answers" validate:"required,min=2,max=10,dive"`
}

type AnswerInput struct {
	ID        int64  `json:"id"`
	Text      string `json:"text" validate:"required,notblank,max=255"`
	IsCorrect bool   `json:"is_correct"`
}

func (uq *UpdateQuestion) Validate(validate *validator.Validate) error {
	uq.Text = core.CleanString(uq.Text)
	for i := range uq.Answers {
		uq.Answers[i].Text = core.CleanString(uq.Answers[i].Text)
	}
	return validate.Struct(uq)
}

// SubmitAnswer is a student's answer to the question currently presented.
type SubmitAnswer struct {
	AnswerID int64 `json:"answer" validate:"required"`
}

func (sa SubmitAnswer) Validate(validate *validator.Validate) error {
	return validate.Struct(sa)
}

type UpdateStudentSubjects struct {
	SubjectIDs []int64 `json:"subject_ids" validate:"unique"`
}

func (us UpdateStudentSubjects) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

const dateLayout = "2006-01-02"

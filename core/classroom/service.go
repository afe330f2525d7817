package classroom

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("not found")
	ErrNoQuestions     = errors.New("requirement has no questions")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrAlreadyTaken    = errors.New("requirement already taken")

	errInvalidChoice = "select a valid choice"
)

type (
	Repository interface {
		// WithinTx runs fn against a Repository bound to a single transaction.
		// The transaction is committed when fn returns nil and rolled back otherwise.
		WithinTx(ctx context.Context, fn func(repo Repository) error) error

		CreateSubject(ctx context.Context, subj Subject) (Subject, error)
		GetSubject(ctx context.Context, id int64) (Subject, error)
		// QuerySubjects returns the subjects of `teacherID` (all subjects when 0), ordered by name.
		QuerySubjects(ctx context.Context, teacherID int64) ([]Subject, error)
		GetStudentSubjectIDs(ctx context.Context, studentID int64) ([]int64, error)
		SetStudentSubjects(ctx context.Context, studentID int64, subjectIDs []int64) error

		CreateRequirement(ctx context.Context, req Requirement) (Requirement, error)
		// GetRequirement returns the requirement along with its Subject.
		GetRequirement(ctx context.Context, id int64) (Requirement, error)
		// QueryRequirements returns the requirements matching `filter` along with their Subject.
		QueryRequirements(ctx context.Context, filter RequirementFilter) ([]Requirement, error)
		UpdateRequirement(ctx context.Context, req Requirement) (Requirement, error)
		// DeleteRequirement deletes the requirement, its questions and their answers.
		DeleteRequirement(ctx context.Context, id int64) error

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id int64) (Question, error)
		// QueryQuestions returns the questions of a requirement with their AnswersCount, ordered by ID.
		QueryQuestions(ctx context.Context, requirementID int64) ([]Question, error)
		CountQuestions(ctx context.Context, requirementID int64) (int, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		// DeleteQuestion deletes the question and its answers.
		DeleteQuestion(ctx context.Context, id int64) error

		GetAnswer(ctx context.Context, id int64) (Answer, error)
		// QueryAnswers returns the answers of the questions, ordered by ID.
		QueryAnswers(ctx context.Context, questionIDs ...int64) ([]Answer, error)
		CreateAnswer(ctx context.Context, ans Answer) (Answer, error)
		UpdateAnswer(ctx context.Context, ans Answer) (Answer, error)
		DeleteAnswers(ctx context.Context, ids ...int64) error

		// UnansweredQuestions returns the questions of a requirement the student has not answered yet,
		// ordered by text then ID.
		UnansweredQuestions(ctx context.Context, studentID, requirementID int64) ([]Question, error)
		// CreateStudentAnswer returns ErrAlreadyAnswered when the student already answered the question.
		CreateStudentAnswer(ctx context.Context, sa StudentAnswer) (StudentAnswer, error)
		// CountCorrectAnswers counts the correct answers of the student to the questions of a requirement.
		CountCorrectAnswers(ctx context.Context, studentID, requirementID int64) (int, error)
		// CreateTakenRequirement returns ErrAlreadyTaken when the student already completed the requirement.
		CreateTakenRequirement(ctx context.Context, tr TakenRequirement) (TakenRequirement, error)
		GetTakenRequirement(ctx context.Context, studentID, requirementID int64) (TakenRequirement, error)
		// QueryTakenRequirements returns the completed attempts along with their Requirement, Subject
		// and student name, ordered by requirement name then date.
		QueryTakenRequirements(ctx context.Context, filter TakenFilter) ([]TakenRequirement, error)
	}

	// TakenFilter selects completed attempts. Zero values are ignored.
	TakenFilter struct {
		StudentID     int64
		RequirementID int64
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}

	// RequirementDetail is a requirement along with its questions.
	RequirementDetail struct {
		Requirement
		Questions []Question `json:"questions"`
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger}
}

// ownedRequirement only finds requirements owned by `ownerID`; others are reported as not found.
func ownedRequirement(ctx context.Context, repo Repository, ownerID, id int64) (Requirement, error) {
	req, err := repo.GetRequirement(ctx, id)
	if err != nil {
		return Requirement{}, err
	}
	if req.OwnerID != ownerID {
		return Requirement{}, ErrNotFound
	}
	return req, nil
}

// requirementQuestion only finds questions of the requirement.
func requirementQuestion(ctx context.Context, repo Repository, req Requirement, id int64) (Question, error) {
	q, err := repo.GetQuestion(ctx, id)
	if err != nil {
		return Question{}, err
	}
	if q.RequirementID != req.ID {
		return Question{}, ErrNotFound
	}
	return q, nil
}

func (svc *Service) checkSubjectOwnership(ctx context.Context, teacherID, subjectID int64) error {
	subj, err := svc.repo.GetSubject(ctx, subjectID)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "finding subject")
	}
	if err != nil || subj.TeacherID != teacherID {
		return core.NewFieldError("subject_id", errInvalidChoice)
	}
	return nil
}

// Teacher Authoring

func (svc *Service) ListSubjects(ctx context.Context, teacher user.TeacherAccount) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, teacher.ID)
}

// CreateSubject creates a subject owned by `teacher`. `ns` must have been validated.
func (svc *Service) CreateSubject(ctx context.Context, teacher user.TeacherAccount, ns NewSubject) (Subject, error) {
	color := ns.Color
	if color == "" {
		color = DefaultSubjectColor
	}
	return svc.repo.CreateSubject(ctx, Subject{TeacherID: teacher.ID, Name: ns.Name, Color: color})
}

// ListRequirements returns the requirements of `teacher`, by due date, name and subject unless ordered otherwise.
func (svc *Service) ListRequirements(ctx context.Context, teacher user.TeacherAccount, ordering []core.DBOrdering) ([]Requirement, error) {
	if len(ordering) == 0 {
		ordering = defaultRequirementOrdering
	}
	return svc.repo.QueryRequirements(ctx, RequirementFilter{OwnerID: teacher.ID, Ordering: ordering})
}

// CreateRequirement creates a requirement owned by `teacher`. `nr` must have been validated.
func (svc *Service) CreateRequirement(ctx context.Context, teacher user.TeacherAccount, nr NewRequirement) (Requirement, error) {
	req, err := svc.repo.CreateRequirement(ctx, Requirement{
		OwnerID:   teacher.ID,
		SubjectID: nr.SubjectID,
		Name:      nr.Name,
		DueDate:   nr.dueDate(),
	})
	if err != nil {
		return Requirement{}, errors.Wrap(err, "creating requirement")
	}
	return svc.repo.GetRequirement(ctx, req.ID)
}

func (svc *Service) GetRequirement(ctx context.Context, teacher user.TeacherAccount, id int64) (RequirementDetail, error) {
	req, err := ownedRequirement(ctx, svc.repo, teacher.ID, id)
	if err != nil {
		return RequirementDetail{}, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, req.ID)
	if err != nil {
		return RequirementDetail{}, errors.Wrap(err, "querying questions")
	}
	return RequirementDetail{Requirement: req, Questions: questions}, nil
}

// UpdateRequirement renames or moves a requirement to another subject. `ur` must have been validated.
func (svc *Service) UpdateRequirement(ctx context.Context, teacher user.TeacherAccount, id int64, ur UpdateRequirement) (Requirement, error) {
	req, err := ownedRequirement(ctx, svc.repo, teacher.ID, id)
	if err != nil {
		return Requirement{}, err
	}
	req.Name = ur.Name
	req.SubjectID = ur.SubjectID
	if _, err = svc.repo.UpdateRequirement(ctx, req); err != nil {
		return Requirement{}, errors.Wrap(err, "updating requirement")
	}
	return svc.repo.GetRequirement(ctx, req.ID)
}

// DeleteRequirement deletes a requirement along with its questions and answers.
func (svc *Service) DeleteRequirement(ctx context.Context, teacher user.TeacherAccount, id int64) (Requirement, error) {
	req, err := ownedRequirement(ctx, svc.repo, teacher.ID, id)
	if err != nil {
		return Requirement{}, err
	}
	if err = svc.repo.DeleteRequirement(ctx, req.ID); err != nil {
		return Requirement{}, errors.Wrap(err, "deleting requirement")
	}
	return req, nil
}

// AddQuestion adds a question, with no answers yet, to a requirement. `nq` must have been validated.
func (svc *Service) AddQuestion(ctx context.Context, teacher user.TeacherAccount, requirementID int64, nq NewQuestion) (Question, error) {
	req, err := ownedRequirement(ctx, svc.repo, teacher.ID, requirementID)
	if err != nil {
		return Question{}, err
	}
	return svc.repo.CreateQuestion(ctx, Question{RequirementID: req.ID, Text: nq.Text})
}

// GetQuestion returns a question of a requirement along with its answers.
func (svc *Service) GetQuestion(ctx context.Context, teacher user.TeacherAccount, requirementID, questionID int64) (Question, error) {
	req, err := ownedRequirement(ctx, svc.repo, teacher.ID, requirementID)
	if err != nil {
		return Question{}, err
	}
	q, err := requirementQuestion(ctx, svc.repo, req, questionID)
	if err != nil {
		return Question{}, err
	}
	if q.Answers, err = svc.repo.QueryAnswers(ctx, q.ID); err != nil {
		return Question{}, errors.Wrap(err, "querying answers")
	}
	q.AnswersCount = len(q.Answers)
	return q, nil
}

// ChangeQuestion saves the question text along with its whole set of answers, all or nothing.
// `uq` must have been validated.
func (svc *Service) ChangeQuestion(ctx context.Context, teacher user.TeacherAccount, requirementID, questionID int64, uq UpdateQuestion) (Question, error) {
	var q Question
	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		req, err := ownedRequirement(ctx, repo, teacher.ID, requirementID)
		if err != nil {
			return err
		}
		if q, err = requirementQuestion(ctx, repo, req, questionID); err != nil {
			return err
		}

		existing, err := repo.QueryAnswers(ctx, q.ID)
		if err != nil {
			return errors.Wrap(err, "querying answers")
		}
		kept := make(map[int64]bool, len(existing))
		for _, ans := range existing {
			kept[ans.ID] = false
		}

		q.Text = uq.Text
		if q, err = repo.UpdateQuestion(ctx, q); err != nil {
			return errors.Wrap(err, "updating question")
		}

		answers := make([]Answer, 0, len(uq.Answers))
		for _, in := range uq.Answers {
			ans := Answer{ID: in.ID, QuestionID: q.ID, Text: in.Text, IsCorrect: in.IsCorrect}
			if in.ID == 0 {
				ans, err = repo.CreateAnswer(ctx, ans)
			} else {
				if _, ok := kept[in.ID]; !ok {
					return core.NewFieldError("answers", errInvalidChoice)
				}
				kept[in.ID] = true
				ans, err = repo.UpdateAnswer(ctx, ans)
			}
			if err != nil {
				return errors.Wrap(err, "saving answer")
			}
			answers = append(answers, ans)
		}

		var removed []int64
		for id, ok := range kept {
			if !ok {
				removed = append(removed, id)
			}
		}
		if len(removed) > 0 {
			if err = repo.DeleteAnswers(ctx, removed...); err != nil {
				return errors.Wrap(err, "deleting answers")
			}
		}

		q.Answers = answers
		q.AnswersCount = len(answers)
		return nil
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

// DeleteQuestion deletes a question of a requirement along with its answers.
func (svc *Service) DeleteQuestion(ctx context.Context, teacher user.TeacherAccount, requirementID, questionID int64) (Question, error) {
	req, err := ownedRequirement(ctx, svc.repo, teacher.ID, requirementID)
	if err != nil {
		return Question{}, err
	}
	q, err := requirementQuestion(ctx, svc.repo, req, questionID)
	if err != nil {
		return Question{}, err
	}
	if err = svc.repo.DeleteQuestion(ctx, q.ID); err != nil {
		return Question{}, errors.Wrap(err, "deleting question")
	}
	return q, nil
}

// RequirementResults returns the completed attempts of a requirement and their average score.
func (svc *Service) RequirementResults(ctx context.Context, teacher user.TeacherAccount, requirementID int64) (RequirementResults, error) {
	req, err := ownedRequirement(ctx, svc.repo, teacher.ID, requirementID)
	if err != nil {
		return RequirementResults{}, err
	}
	taken, err := svc.repo.QueryTakenRequirements(ctx, TakenFilter{RequirementID: req.ID})
	if err != nil {
		return RequirementResults{}, errors.Wrap(err, "querying taken requirements")
	}

	res := RequirementResults{Requirement: req, Taken: taken, TakenCount: len(taken)}
	if res.Taken == nil {
		res.Taken = []TakenRequirement{}
	}
	if len(taken) > 0 {
		var total float64
		for _, tr := range taken {
			total += tr.Score
		}
		res.AverageScore = roundScore(total / float64(len(taken)))
	}
	return res, nil
}

// Student Browsing

// ListAssignable returns the requirements of the subjects `student` is enrolled to which are not past due,
// by due date, name and subject.
func (svc *Service) ListAssignable(ctx context.Context, student user.StudentAccount) ([]Requirement, error) {
	subjectIDs, err := svc.repo.GetStudentSubjectIDs(ctx, student.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student subjects")
	}
	if len(subjectIDs) == 0 {
		return []Requirement{}, nil
	}
	return svc.repo.QueryRequirements(ctx, RequirementFilter{
		SubjectIDs: subjectIDs,
		DueFrom:    core.Today(),
		Ordering:   defaultRequirementOrdering,
	})
}

func (svc *Service) GetSubjects(ctx context.Context, student user.StudentAccount) (StudentSubjects, error) {
	ids, err := svc.repo.GetStudentSubjectIDs(ctx, student.ID)
	if err != nil {
		return StudentSubjects{}, errors.Wrap(err, "querying student subjects")
	}
	subjects, err := svc.repo.QuerySubjects(ctx, 0)
	if err != nil {
		return StudentSubjects{}, errors.Wrap(err, "querying subjects")
	}
	if ids == nil {
		ids = []int64{}
	}
	if subjects == nil {
		subjects = []Subject{}
	}
	return StudentSubjects{SubjectIDs: ids, Subjects: subjects}, nil
}

// UpdateSubjects replaces the subjects `student` is enrolled to. `us` must have been validated.
func (svc *Service) UpdateSubjects(ctx context.Context, student user.StudentAccount, us UpdateStudentSubjects) (StudentSubjects, error) {
	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		for _, id := range us.SubjectIDs {
			if _, err := repo.GetSubject(ctx, id); err != nil {
				if errors.Cause(err) == ErrNotFound {
					return core.NewFieldError("subject_ids", errInvalidChoice)
				}
				return errors.Wrap(err, "finding subject")
			}
		}
		return repo.SetStudentSubjects(ctx, student.ID, us.SubjectIDs)
	})
	if err != nil {
		return StudentSubjects{}, err
	}
	return svc.GetSubjects(ctx, student)
}

// ListFinished returns the requirements `student` completed, by requirement name.
func (svc *Service) ListFinished(ctx context.Context, student user.StudentAccount) ([]TakenRequirement, error) {
	taken, err := svc.repo.QueryTakenRequirements(ctx, TakenFilter{StudentID: student.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying taken requirements")
	}
	if taken == nil {
		taken = []TakenRequirement{}
	}
	return taken, nil
}

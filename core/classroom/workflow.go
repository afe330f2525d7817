package classroom

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/core/user"
)

// AttemptState is where a student stands on a Requirement.
type AttemptState string

const (
	StateNotStarted AttemptState = "not_started"
	StateInProgress AttemptState = "in_progress"
	StateCompleted  AttemptState = "completed"
)

// Outcome is what TakeRequirement did.
type Outcome string

const (
	// OutcomeQuestion presents the next unanswered question.
	OutcomeQuestion Outcome = "question"
	// OutcomeAdvance records an answer; questions remain.
	OutcomeAdvance Outcome = "advance"
	// OutcomeCompleted records the last answer and the score.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAlreadyTaken reports a requirement completed earlier.
	OutcomeAlreadyTaken Outcome = "already_taken"
)

const (
	LevelSuccess = "success"
	LevelWarning = "warning"

	passingScore = 50.0
)

type (
	// QuestionView is a question as presented to students: correctness is never revealed.
	QuestionView struct {
		ID      int64        `json:"id"`
		Text    string       `json:"text"`
		Answers []AnswerView `json:"answers"`
	}

	AnswerView struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}

	Attempt struct {
		Outcome        Outcome           `json:"outcome"`
		State          AttemptState      `json:"state"`
		Requirement    Requirement       `json:"requirement"`
		Question       *QuestionView     `json:"question,omitempty"`
		TotalQuestions int               `json:"total_questions"`
		Unanswered     int               `json:"unanswered"`
		Progress       int               `json:"progress"`
		Taken          *TakenRequirement `json:"taken,omitempty"`
		Message        string            `json:"message,omitempty"`
		MessageLevel   string            `json:"message_level,omitempty"`
	}

	completionEmailData struct {
		StudentName string
		Message     string
	}
)

func newQuestionView(q Question, answers []Answer) *QuestionView {
	qv := &QuestionView{ID: q.ID, Text: q.Text, Answers: make([]AnswerView, 0, len(answers))}
	for _, ans := range answers {
		qv.Answers = append(qv.Answers, AnswerView{ID: ans.ID, Text: ans.Text})
	}
	return qv
}

// progress is the percentage shown while `unanswered` questions of `total` remain,
// counting the question being presented as done.
func progress(unanswered, total int) int {
	if total <= 0 {
		return 0
	}
	p := 100 - int(math.RoundToEven(float64(unanswered-1)/float64(total)*100))
	if p < 0 {
		return 0
	} else if p > 100 {
		return 100
	}
	return p
}

// roundScore rounds to 2 decimal places on the exact decimal value of `score`, ties to even: 3.125 gives 3.12.
func roundScore(score float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(score, 'f', 2, 64), 64)
	if err != nil {
		return score
	}
	return rounded
}

// computeScore is the percentage of correct answers, to 2 decimal places.
func computeScore(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return roundScore(float64(correct) / float64(total) * 100)
}

// scoreText formats the score with at least one decimal place, eg. 50.0 or 66.67
func scoreText(score float64) string {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func completionMessage(req Requirement, score float64) (string, string) {
	if score < passingScore {
		return fmt.Sprintf("Better luck next time! Your score for the requirement %s was %s.", req.Name, scoreText(score)),
			LevelWarning
	}
	return fmt.Sprintf("Congratulations! You completed the requirement %s with success! You scored %s points.", req.Name, scoreText(score)),
		LevelSuccess
}

func alreadyTaken(req Requirement, taken TakenRequirement) Attempt {
	taken.Requirement = &req
	return Attempt{
		Outcome:      OutcomeAlreadyTaken,
		State:        StateCompleted,
		Requirement:  req,
		Progress:     100,
		Taken:        &taken,
		Message:      fmt.Sprintf("You already completed the requirement %s.", req.Name),
		MessageLevel: LevelWarning,
	}
}

// UnansweredQuestions returns the questions of a requirement `student` has not answered yet, in the order
// they are presented: by text then ID.
func (svc *Service) UnansweredQuestions(ctx context.Context, student user.StudentAccount, requirementID int64) ([]Question, error) {
	if _, err := svc.repo.GetRequirement(ctx, requirementID); err != nil {
		return nil, err
	}
	questions, err := svc.repo.UnansweredQuestions(ctx, student.ID, requirementID)
	if err != nil {
		return nil, errors.Wrap(err, "querying unanswered questions")
	}
	if questions == nil {
		questions = []Question{}
	}
	return questions, nil
}

// AttemptState tells whether `student` has not started, is taking or has completed a requirement.
func (svc *Service) AttemptState(ctx context.Context, student user.StudentAccount, requirementID int64) (AttemptState, error) {
	if _, err := svc.repo.GetRequirement(ctx, requirementID); err != nil {
		return "", err
	}
	if _, err := svc.repo.GetTakenRequirement(ctx, student.ID, requirementID); err == nil {
		return StateCompleted, nil
	} else if errors.Cause(err) != ErrNotFound {
		return "", errors.Wrap(err, "finding taken requirement")
	}

	total, err := svc.repo.CountQuestions(ctx, requirementID)
	if err != nil {
		return "", errors.Wrap(err, "counting questions")
	}
	unanswered, err := svc.repo.UnansweredQuestions(ctx, student.ID, requirementID)
	if err != nil {
		return "", errors.Wrap(err, "querying unanswered questions")
	}
	if total-len(unanswered) > 0 {
		return StateInProgress, nil
	}
	return StateNotStarted, nil
}

// TakeRequirement presents the next unanswered question of a requirement to `student` when `answerID` is nil.
// Otherwise it records the answer to the question currently presented and, once every question is answered,
// records the score, all within one transaction.
func (svc *Service) TakeRequirement(ctx context.Context, student user.StudentAccount, requirementID int64, answerID *int64) (Attempt, error) {
	req, err := svc.repo.GetRequirement(ctx, requirementID)
	if err != nil {
		return Attempt{}, err
	}

	if taken, err := svc.repo.GetTakenRequirement(ctx, student.ID, req.ID); err == nil {
		return alreadyTaken(req, taken), nil
	} else if errors.Cause(err) != ErrNotFound {
		return Attempt{}, errors.Wrap(err, "finding taken requirement")
	}

	var attempt Attempt
	err = svc.repo.WithinTx(ctx, func(repo Repository) error {
		var err error
		if answerID == nil {
			attempt, err = svc.present(ctx, repo, student, req)
		} else {
			attempt, err = svc.submit(ctx, repo, student, req, *answerID)
		}
		return err
	})

	if errors.Cause(err) == ErrAlreadyTaken {
		// completed concurrently
		taken, gerr := svc.repo.GetTakenRequirement(ctx, student.ID, req.ID)
		if gerr != nil {
			return Attempt{}, errors.Wrap(gerr, "finding taken requirement")
		}
		return alreadyTaken(req, taken), nil
	}
	if err != nil {
		return Attempt{}, err
	}

	if attempt.Outcome == OutcomeCompleted {
		svc.notifyCompletion(student, attempt)
	}
	return attempt, nil
}

func (svc *Service) present(ctx context.Context, repo Repository, student user.StudentAccount, req Requirement) (Attempt, error) {
	total, err := repo.CountQuestions(ctx, req.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "counting questions")
	}
	if total == 0 {
		return Attempt{}, ErrNoQuestions
	}

	unanswered, err := repo.UnansweredQuestions(ctx, student.ID, req.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying unanswered questions")
	}
	if len(unanswered) == 0 {
		// every remaining question got answered, the last one being deleted meanwhile
		return svc.complete(ctx, repo, student, req, total)
	}

	q := unanswered[0]
	answers, err := repo.QueryAnswers(ctx, q.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying answers")
	}

	state := StateInProgress
	if len(unanswered) == total {
		state = StateNotStarted
	}
	return Attempt{
		Outcome:        OutcomeQuestion,
		State:          state,
		Requirement:    req,
		Question:       newQuestionView(q, answers),
		TotalQuestions: total,
		Unanswered:     len(unanswered),
		Progress:       progress(len(unanswered), total),
	}, nil
}

func (svc *Service) submit(ctx context.Context, repo Repository, student user.StudentAccount, req Requirement, answerID int64) (Attempt, error) {
	total, err := repo.CountQuestions(ctx, req.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "counting questions")
	}
	if total == 0 {
		return Attempt{}, ErrNoQuestions
	}

	unanswered, err := repo.UnansweredQuestions(ctx, student.ID, req.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "querying unanswered questions")
	}
	if len(unanswered) == 0 {
		return svc.complete(ctx, repo, student, req, total)
	}
	q := unanswered[0]

	ans, err := repo.GetAnswer(ctx, answerID)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return Attempt{}, errors.Wrap(err, "finding answer")
	}
	if err != nil || ans.QuestionID != q.ID {
		return Attempt{}, core.NewFieldError("answer", errInvalidChoice)
	}

	if _, err = repo.CreateStudentAnswer(ctx, StudentAnswer{StudentID: student.ID, AnswerID: ans.ID, QuestionID: q.ID}); err != nil {
		return Attempt{}, err
	}

	// questions may have been deleted since the count
	if total, err = repo.CountQuestions(ctx, req.ID); err != nil {
		return Attempt{}, errors.Wrap(err, "counting questions")
	}
	if unanswered, err = repo.UnansweredQuestions(ctx, student.ID, req.ID); err != nil {
		return Attempt{}, errors.Wrap(err, "querying unanswered questions")
	}
	remaining := len(unanswered)
	if remaining > 0 {
		return Attempt{
			Outcome:        OutcomeAdvance,
			State:          StateInProgress,
			Requirement:    req,
			TotalQuestions: total,
			Unanswered:     remaining,
			Progress:       progress(remaining, total),
		}, nil
	}
	return svc.complete(ctx, repo, student, req, total)
}

func (svc *Service) complete(ctx context.Context, repo Repository, student user.StudentAccount, req Requirement, total int) (Attempt, error) {
	correct, err := repo.CountCorrectAnswers(ctx, student.ID, req.ID)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "counting correct answers")
	}
	score := computeScore(correct, total)

	taken, err := repo.CreateTakenRequirement(ctx, TakenRequirement{
		StudentID:     student.ID,
		RequirementID: req.ID,
		Score:         score,
		Date:          core.NowFunc().UTC(),
	})
	if err != nil {
		return Attempt{}, err
	}
	taken.Requirement = &req
	taken.StudentName = displayName(student.User)

	msg, level := completionMessage(req, score)
	return Attempt{
		Outcome:        OutcomeCompleted,
		State:          StateCompleted,
		Requirement:    req,
		TotalQuestions: total,
		Progress:       100,
		Taken:          &taken,
		Message:        msg,
		MessageLevel:   level,
	}, nil
}

func (svc *Service) notifyCompletion(student user.StudentAccount, attempt Attempt) {
	svc.logger.Info("requirement completed", map[string]interface{}{
		"student_id":     student.ID,
		"requirement_id": attempt.Requirement.ID,
		"score":          attempt.Taken.Score,
	})
	if student.Email == "" || svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Requirement completed: " + attempt.Requirement.Name,
		TemplateName: "requirement_completed",
		TemplateData: completionEmailData{StudentName: displayName(student.User), Message: attempt.Message},
	})
}

func displayName(usr user.User) string {
	if usr.Name != "" {
		return usr.Name
	}
	return usr.Username
}

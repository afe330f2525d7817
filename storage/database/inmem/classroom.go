package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/trackle/core/classroom"
)

type classroomRepository struct {
	conn
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{conn: conn{db: db}}
}

func (repo *classroomRepository) WithinTx(ctx context.Context, fn func(repo classroom.Repository) error) error {
	return repo.runInTx(ctx, func(c conn) error {
		return fn(&classroomRepository{conn: c})
	})
}

// Subjects

func (repo *classroomRepository) CreateSubject(_ context.Context, subj classroom.Subject) (classroom.Subject, error) {
	defer repo.lock()()
	subj.ID = repo.db.nextPK()
	repo.db.subjects[subj.ID] = subj
	return subj, nil
}

func (repo *classroomRepository) GetSubject(_ context.Context, id int64) (classroom.Subject, error) {
	defer repo.lock()()
	if subj, ok := repo.db.subjects[id]; ok {
		return subj, nil
	}
	return classroom.Subject{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QuerySubjects(_ context.Context, teacherID int64) ([]classroom.Subject, error) {
	defer repo.lock()()
	subjects := make([]classroom.Subject, 0)
	for _, subj := range repo.db.subjects {
		if teacherID == 0 || subj.TeacherID == teacherID {
			subjects = append(subjects, subj)
		}
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].Name != subjects[j].Name {
			return subjects[i].Name < subjects[j].Name
		}
		return subjects[i].ID < subjects[j].ID
	})
	return subjects, nil
}

func (repo *classroomRepository) GetStudentSubjectIDs(_ context.Context, studentID int64) ([]int64, error) {
	defer repo.lock()()
	ids := append([]int64{}, repo.db.studentSubjects[studentID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (repo *classroomRepository) SetStudentSubjects(_ context.Context, studentID int64, subjectIDs []int64) error {
	defer repo.lock()()
	if !repo.db.students[studentID] {
		return classroom.ErrNotFound
	}
	for _, id := range subjectIDs {
		if _, ok := repo.db.subjects[id]; !ok {
			return classroom.ErrNotFound
		}
	}
	repo.db.studentSubjects[studentID] = append([]int64(nil), subjectIDs...)
	return nil
}

// Requirements

func (repo *classroomRepository) withSubject(req classroom.Requirement) classroom.Requirement {
	if subj, ok := repo.db.subjects[req.SubjectID]; ok {
		req.Subject = &subj
	}
	return req
}

func (repo *classroomRepository) CreateRequirement(_ context.Context, req classroom.Requirement) (classroom.Requirement, error) {
	defer repo.lock()()
	if _, ok := repo.db.subjects[req.SubjectID]; !ok {
		return classroom.Requirement{}, classroom.ErrNotFound
	}
	req.ID = repo.db.nextPK()
	req.Subject = nil
	repo.db.requirements[req.ID] = req
	return req, nil
}

func (repo *classroomRepository) GetRequirement(_ context.Context, id int64) (classroom.Requirement, error) {
	defer repo.lock()()
	if req, ok := repo.db.requirements[id]; ok {
		return repo.withSubject(req), nil
	}
	return classroom.Requirement{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryRequirements(_ context.Context, filter classroom.RequirementFilter) ([]classroom.Requirement, error) {
	defer repo.lock()()

	var subjectIDs map[int64]bool
	if filter.SubjectIDs != nil {
		subjectIDs = make(map[int64]bool, len(filter.SubjectIDs))
		for _, id := range filter.SubjectIDs {
			subjectIDs[id] = true
		}
	}

	reqs := make([]classroom.Requirement, 0)
	for _, req := range repo.db.requirements {
		if filter.OwnerID != 0 && req.OwnerID != filter.OwnerID {
			continue
		}
		if subjectIDs != nil && !subjectIDs[req.SubjectID] {
			continue
		}
		if !filter.DueFrom.IsZero() && req.DueDate.Before(filter.DueFrom) {
			continue
		}
		reqs = append(reqs, repo.withSubject(req))
	}

	sort.Slice(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		for _, ord := range filter.Ordering {
			var cmp int
			switch ord.Field {
			case "due_date":
				cmp = a.DueDate.Compare(b.DueDate)
			case "name":
				cmp = strings.Compare(a.Name, b.Name)
			case "subject_id":
				cmp = compareInt(a.SubjectID, b.SubjectID)
			case "id":
				cmp = compareInt(a.ID, b.ID)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return a.ID < b.ID
	})
	return reqs, nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *classroomRepository) UpdateRequirement(_ context.Context, req classroom.Requirement) (classroom.Requirement, error) {
	defer repo.lock()()
	if _, ok := repo.db.requirements[req.ID]; !ok {
		return classroom.Requirement{}, classroom.ErrNotFound
	}
	if _, ok := repo.db.subjects[req.SubjectID]; !ok {
		return classroom.Requirement{}, classroom.ErrNotFound
	}
	req.Subject = nil
	repo.db.requirements[req.ID] = req
	return req, nil
}

func (repo *classroomRepository) DeleteRequirement(_ context.Context, id int64) error {
	defer repo.lock()()
	if _, ok := repo.db.requirements[id]; !ok {
		return classroom.ErrNotFound
	}
	delete(repo.db.requirements, id)
	for qid, q := range repo.db.questions {
		if q.RequirementID == id {
			repo.deleteQuestion(qid)
		}
	}
	for tid, tr := range repo.db.taken {
		if tr.RequirementID == id {
			delete(repo.db.taken, tid)
		}
	}
	return nil
}

// Questions

func (repo *classroomRepository) CreateQuestion(_ context.Context, q classroom.Question) (classroom.Question, error) {
	defer repo.lock()()
	if _, ok := repo.db.requirements[q.RequirementID]; !ok {
		return classroom.Question{}, classroom.ErrNotFound
	}
	q.ID = repo.db.nextPK()
	q.Answers = nil
	q.AnswersCount = 0
	repo.db.questions[q.ID] = q
	return q, nil
}

func (repo *classroomRepository) GetQuestion(_ context.Context, id int64) (classroom.Question, error) {
	defer repo.lock()()
	if q, ok := repo.db.questions[id]; ok {
		return q, nil
	}
	return classroom.Question{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryQuestions(_ context.Context, requirementID int64) ([]classroom.Question, error) {
	defer repo.lock()()
	counts := make(map[int64]int)
	for _, ans := range repo.db.answers {
		counts[ans.QuestionID]++
	}
	questions := make([]classroom.Question, 0)
	for _, q := range repo.db.questions {
		if q.RequirementID == requirementID {
			q.AnswersCount = counts[q.ID]
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, nil
}

func (repo *classroomRepository) CountQuestions(_ context.Context, requirementID int64) (int, error) {
	defer repo.lock()()
	var n int
	for _, q := range repo.db.questions {
		if q.RequirementID == requirementID {
			n++
		}
	}
	return n, nil
}

func (repo *classroomRepository) UpdateQuestion(_ context.Context, q classroom.Question) (classroom.Question, error) {
	defer repo.lock()()
	orig, ok := repo.db.questions[q.ID]
	if !ok {
		return classroom.Question{}, classroom.ErrNotFound
	}
	orig.Text = q.Text
	repo.db.questions[q.ID] = orig
	return orig, nil
}

func (repo *classroomRepository) DeleteQuestion(_ context.Context, id int64) error {
	defer repo.lock()()
	if _, ok := repo.db.questions[id]; !ok {
		return classroom.ErrNotFound
	}
	repo.deleteQuestion(id)
	return nil
}

func (repo *classroomRepository) deleteQuestion(id int64) {
	delete(repo.db.questions, id)
	for aid, ans := range repo.db.answers {
		if ans.QuestionID == id {
			repo.deleteAnswer(aid)
		}
	}
}

// Answers

func (repo *classroomRepository) GetAnswer(_ context.Context, id int64) (classroom.Answer, error) {
	defer repo.lock()()
	if ans, ok := repo.db.answers[id]; ok {
		return ans, nil
	}
	return classroom.Answer{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryAnswers(_ context.Context, questionIDs ...int64) ([]classroom.Answer, error) {
	defer repo.lock()()
	ids := make(map[int64]bool, len(questionIDs))
	for _, id := range questionIDs {
		ids[id] = true
	}
	answers := make([]classroom.Answer, 0)
	for _, ans := range repo.db.answers {
		if ids[ans.QuestionID] {
			answers = append(answers, ans)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	return answers, nil
}

func (repo *classroomRepository) CreateAnswer(_ context.Context, ans classroom.Answer) (classroom.Answer, error) {
	defer repo.lock()()
	if _, ok := repo.db.questions[ans.QuestionID]; !ok {
		return classroom.Answer{}, classroom.ErrNotFound
	}
	ans.ID = repo.db.nextPK()
	repo.db.answers[ans.ID] = ans
	return ans, nil
}

func (repo *classroomRepository) UpdateAnswer(_ context.Context, ans classroom.Answer) (classroom.Answer, error) {
	defer repo.lock()()
	orig, ok := repo.db.answers[ans.ID]
	if !ok || orig.QuestionID != ans.QuestionID {
		return classroom.Answer{}, classroom.ErrNotFound
	}
	repo.db.answers[ans.ID] = ans
	return ans, nil
}

func (repo *classroomRepository) DeleteAnswers(_ context.Context, ids ...int64) error {
	defer repo.lock()()
	for _, id := range ids {
		repo.deleteAnswer(id)
	}
	return nil
}

func (repo *classroomRepository) deleteAnswer(id int64) {
	delete(repo.db.answers, id)
	for said, sa := range repo.db.studentAnswers {
		if sa.AnswerID == id {
			delete(repo.db.studentAnswers, said)
		}
	}
}

// Attempts

func (repo *classroomRepository) UnansweredQuestions(_ context.Context, studentID, requirementID int64) ([]classroom.Question, error) {
	defer repo.lock()()
	answered := make(map[int64]bool)
	for _, sa := range repo.db.studentAnswers {
		if sa.StudentID == studentID {
			answered[sa.QuestionID] = true
		}
	}
	questions := make([]classroom.Question, 0)
	for _, q := range repo.db.questions {
		if q.RequirementID == requirementID && !answered[q.ID] {
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Text != questions[j].Text {
			return questions[i].Text < questions[j].Text
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

func (repo *classroomRepository) CreateStudentAnswer(_ context.Context, sa classroom.StudentAnswer) (classroom.StudentAnswer, error) {
	defer repo.lock()()
	for _, other := range repo.db.studentAnswers {
		if other.StudentID == sa.StudentID && other.QuestionID == sa.QuestionID {
			return classroom.StudentAnswer{}, classroom.ErrAlreadyAnswered
		}
	}
	if _, ok := repo.db.answers[sa.AnswerID]; !ok {
		return classroom.StudentAnswer{}, classroom.ErrNotFound
	}
	sa.ID = repo.db.nextPK()
	repo.db.studentAnswers[sa.ID] = sa
	return sa, nil
}

func (repo *classroomRepository) CountCorrectAnswers(_ context.Context, studentID, requirementID int64) (int, error) {
	defer repo.lock()()
	var n int
	for _, sa := range repo.db.studentAnswers {
		if sa.StudentID != studentID {
			continue
		}
		q, ok := repo.db.questions[sa.QuestionID]
		if !ok || q.RequirementID != requirementID {
			continue
		}
		if repo.db.answers[sa.AnswerID].IsCorrect {
			n++
		}
	}
	return n, nil
}

func (repo *classroomRepository) CreateTakenRequirement(_ context.Context, tr classroom.TakenRequirement) (classroom.TakenRequirement, error) {
	defer repo.lock()()
	for _, other := range repo.db.taken {
		if other.StudentID == tr.StudentID && other.RequirementID == tr.RequirementID {
			return classroom.TakenRequirement{}, classroom.ErrAlreadyTaken
		}
	}
	tr.ID = repo.db.nextPK()
	tr.Requirement = nil
	tr.StudentName = ""
	repo.db.taken[tr.ID] = tr
	return tr, nil
}

func (repo *classroomRepository) withRelations(tr classroom.TakenRequirement) classroom.TakenRequirement {
	if req, ok := repo.db.requirements[tr.RequirementID]; ok {
		req = repo.withSubject(req)
		tr.Requirement = &req
	}
	if usr, ok := repo.db.users[tr.StudentID]; ok {
		tr.StudentName = usr.Name
		if tr.StudentName == "" {
			tr.StudentName = usr.Username
		}
	}
	return tr
}

func (repo *classroomRepository) GetTakenRequirement(_ context.Context, studentID, requirementID int64) (classroom.TakenRequirement, error) {
	defer repo.lock()()
	for _, tr := range repo.db.taken {
		if tr.StudentID == studentID && tr.RequirementID == requirementID {
			return repo.withRelations(tr), nil
		}
	}
	return classroom.TakenRequirement{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryTakenRequirements(_ context.Context, filter classroom.TakenFilter) ([]classroom.TakenRequirement, error) {
	defer repo.lock()()
	taken := make([]classroom.TakenRequirement, 0)
	for _, tr := range repo.db.taken {
		if filter.StudentID != 0 && tr.StudentID != filter.StudentID {
			continue
		}
		if filter.RequirementID != 0 && tr.RequirementID != filter.RequirementID {
			continue
		}
		taken = append(taken, repo.withRelations(tr))
	}
	sort.Slice(taken, func(i, j int) bool {
		a, b := taken[i], taken[j]
		if a.Requirement != nil && b.Requirement != nil && a.Requirement.Name != b.Requirement.Name {
			return a.Requirement.Name < b.Requirement.Name
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
	return taken, nil
}

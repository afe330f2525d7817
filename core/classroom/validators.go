package classroom

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/trackle/core"
)

var (
	oneCorrectTag  = "onecorrect"
	oneCorrectText = "mark at least one answer as correct"

	uniqueAnswersTag  = "uniqueanswers"
	uniqueAnswersText = "each answer can only be submitted once"
)

// InitValidators registers the classroom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, UpdateQuestion{})

	core.RegisterCustomTranslation(validate, translator, oneCorrectTag, oneCorrectText)
	core.RegisterCustomTranslation(validate, translator, uniqueAnswersTag, uniqueAnswersText)
}

// questionStructValidation does struct level validation on UpdateQuestion.
func questionStructValidation(sl validator.StructLevel) {
	uq, ok := sl.Current().Interface().(UpdateQuestion)
	if !ok || len(uq.Answers) == 0 {
		return // reported by "required"
	}

	var hasCorrect bool
	seen := make(map[int64]bool, len(uq.Answers))
	for _, ans := range uq.Answers {
		hasCorrect = hasCorrect || ans.IsCorrect
		if ans.ID == 0 {
			continue
		}
		if seen[ans.ID] {
			sl.ReportError(uq.Answers, "answers", "Answers", uniqueAnswersTag, "")
			return
		}
		seen[ans.ID] = true
	}
	if !hasCorrect {
		sl.ReportError(uq.Answers, "answers", "Answers", oneCorrectTag, "")
	}
}

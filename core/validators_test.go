package core_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackle/core"
)

type signup struct {
	Username string `json:"username" validate:"required,alphanum_"`
	Name     string `json:"name" validate:"notblank"`
}

func TestNewValidator(t *testing.T) {
	validate, translator := core.NewValidator()

	err := validate.Struct(signup{Name: "  "})
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, "got %v", err)
	require.Len(t, verrs, 2)

	msgs := verrs.Translate(translator)
	assert.Equal(t, "this field is required", msgs["signup.username"])
	assert.Equal(t, "this field cannot be blank", msgs["signup.name"])

	err = validate.Struct(signup{Username: "john-doe", Name: "John"})
	verrs, ok = err.(validator.ValidationErrors)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "only alphanumeric characters and underscores are allowed", verrs[0].Translate(translator))
}

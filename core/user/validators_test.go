package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/core/user"
	inmemdb "github.com/trezcool/trackle/storage/database/inmem"
	testutil "github.com/trezcool/trackle/tests"
)

func TestNewUser_Validate(t *testing.T) {
	conf := testutil.NewConfig()
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(testutil.NewLogger(conf))

	svc := user.NewService(inmemdb.NewUserRepository(inmemdb.NewDB()))

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1!", wantTag: "pwdminlen"},
		{name: "whitespace", pwd: "Abcd 1234!", wantTag: "pwdnospace"},
		{name: "all numeric", pwd: "1234567890", wantTag: "pwdnotallnum"},
		{name: "not complex", pwd: "abcdefgh1", wantTag: "pwdcplx"},
		{name: "similar to username", pwd: "Johndoe1!", wantTag: "pwdtoosim"},
		{name: "common", pwd: "P@ssw0rd", wantTag: "pwdnocommon"},
		{name: "valid", pwd: testutil.Password},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := user.NewUser{Username: "johndoe", Email: "jd@trackle.test", Password: tt.pwd, PasswordConfirm: tt.pwd}
			err := nu.Validate(context.Background(), validate, svc)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.wantTag, verrs[0].Tag())
			assert.Equal(t, "password", verrs[0].Field())
		})
	}

	t.Run("cleans & checks uniqueness", func(t *testing.T) {
		nu := user.NewUser{Username: " Mary ", Password: testutil.Password, PasswordConfirm: testutil.Password}
		require.NoError(t, nu.Validate(context.Background(), validate, svc))
		assert.Equal(t, "mary", nu.Username)

		_, err := svc.Create(context.Background(), nu, user.RoleTeacher)
		require.NoError(t, err)

		err = nu.Validate(context.Background(), validate, svc)
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "username", verr.Fields[0].Field)
	})

	t.Run("password confirmation", func(t *testing.T) {
		nu := user.NewUser{Username: "bob", Password: testutil.Password, PasswordConfirm: "other"}
		err := nu.Validate(context.Background(), validate, svc)
		verrs, ok := err.(validator.ValidationErrors)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "password_confirm", verrs[0].Field())
	})
}

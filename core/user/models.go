package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/trackle/core"
)

// Role is the one role a User acts as.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

var AllRoles = []Role{RoleStudent, RoleTeacher}

func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleTeacher
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }

// Account is an authenticated User, resolved once to the role it acts as.
// Operations reserved to one role take the matching variant instead of checking flags.
type Account interface {
	GetUser() User
	isAccount()
}

type (
	StudentAccount struct{ User }
	TeacherAccount struct{ User }
)

func (a StudentAccount) GetUser() User { return a.User }
func (StudentAccount) isAccount()      {}

func (a TeacherAccount) GetUser() User { return a.User }
func (TeacherAccount) isAccount()      {}

// NewAccount resolves `usr` to its Account variant.
func NewAccount(usr User) (Account, error) {
	switch usr.Role {
	case RoleStudent:
		return StudentAccount{usr}, nil
	case RoleTeacher:
		return TeacherAccount{usr}, nil
	default:
		return nil, ErrUnknownRole
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"max=150"`
	Username        string `json:"username" validate:"required,min=3,max=150,alphanum_"`
	Email           string `json:"email" validate:"omitempty,max=254,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

type GetFilter struct {
	ID              int64
	Username        string
	Email           string
	UsernameOrEmail string
}

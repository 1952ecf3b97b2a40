package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahub/darasa/core"
)

var (
	ErrNotFound             = errors.New("user not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		// GetUserByIdentifier matches `identifier` against either Email or StudentID.
		GetUserByIdentifier(ctx context.Context, identifier string) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		StudentID: nu.StudentID,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

// Authenticate matches `identifier` (email or student ID) and password against
// a stored account.
func (svc *Service) Authenticate(ctx context.Context, identifier, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByIdentifier(ctx, core.CleanString(identifier, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by identifier")
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return usr, nil
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	StudentID string `json:"student_id" validate:"omitempty,alphanum_"`
	Role      string `json:"role" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

func (nu *NewUser) Validate() error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.StudentID = core.CleanString(nu.StudentID)
	if !IsValidRole(nu.Role) {
		nu.Role = RoleStudent
	}
	return core.Validate.Struct(nu)
}

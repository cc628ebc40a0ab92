package service

import (
	"context"
	"strings"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
)

// UserService manages accounts. Handle-addressed operations are admin only and
// are authorized before the lookup; the profile operations act on the caller.
type UserService interface {
	List(ctx context.Context, actor access.Actor, search string, page dto.PageQuery) (*dto.PaginatedResponse[dto.UserResponse], error)
	Create(ctx context.Context, actor access.Actor, req dto.CreateUserDTO) (*dto.UserResponse, error)
	Get(ctx context.Context, actor access.Actor, username string) (*dto.UserResponse, error)
	Update(ctx context.Context, actor access.Actor, username string, req dto.UpdateUserDTO) (*dto.UserResponse, error)
	Delete(ctx context.Context, actor access.Actor, username string) error

	GetProfile(ctx context.Context, actor access.Actor) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, actor access.Actor, req dto.UpdateProfileDTO) (*dto.UserResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

var accountTarget = access.Target{Kind: access.KindAccount}

func (s *userService) List(ctx context.Context, actor access.Actor, search string, page dto.PageQuery) (*dto.PaginatedResponse[dto.UserResponse], error) {
	if err := access.Authorize(actor, access.ActionRead, accountTarget); err != nil {
		return nil, err
	}
	users, total, err := s.userRepo.List(ctx, search, toPage(page))
	if err != nil {
		return nil, apperr.Dependency("list users", err)
	}
	return dto.NewPaginatedResponse(dto.MapSlice(users, dto.FromModelToUserResponse), total, page.Page, page.PageSize), nil
}

func (s *userService) Create(ctx context.Context, actor access.Actor, req dto.CreateUserDTO) (*dto.UserResponse, error) {
	if err := access.Authorize(actor, access.ActionCreate, accountTarget); err != nil {
		return nil, err
	}
	if err := dto.Check(req).Merge(ValidateUsername(req.Username)).OrNil(); err != nil {
		return nil, err
	}
	role := access.RoleUser
	if req.Role != "" {
		parsed, err := access.ParseRole(req.Role)
		if err != nil {
			return nil, apperr.Validation("role", err.Error())
		}
		role = parsed
	}

	// created inactive; the account holder obtains a code through sign-up
	user := &models.User{
		Username:  req.Username,
		Email:     strings.TrimSpace(req.Email),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, writeErr(err, "create user", "username or email already registered")
	}
	resp := dto.FromModelToUserResponse(user)
	return &resp, nil
}

func (s *userService) Get(ctx context.Context, actor access.Actor, username string) (*dto.UserResponse, error) {
	if err := access.Authorize(actor, access.ActionRead, accountTarget); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, lookupErr(err, "user", "find user")
	}
	resp := dto.FromModelToUserResponse(user)
	return &resp, nil
}

func (s *userService) Update(ctx context.Context, actor access.Actor, username string, req dto.UpdateUserDTO) (*dto.UserResponse, error) {
	if err := access.Authorize(actor, access.ActionUpdate, accountTarget); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, lookupErr(err, "user", "find user")
	}

	if req.Role != nil && !access.CanAssignRole(actor) {
		return nil, apperr.Forbidden("only admins may change roles")
	}
	if err := dto.Check(req).OrNil(); err != nil {
		return nil, err
	}

	fields := profileFields(req.Email, req.FirstName, req.LastName, req.Bio)
	if req.Role != nil {
		role, err := access.ParseRole(*req.Role)
		if err != nil {
			return nil, apperr.Validation("role", err.Error())
		}
		fields["role"] = role
	}
	return s.apply(ctx, user.ID, fields)
}

func (s *userService) Delete(ctx context.Context, actor access.Actor, username string) error {
	if err := access.Authorize(actor, access.ActionDelete, accountTarget); err != nil {
		return err
	}
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return lookupErr(err, "user", "find user")
	}
	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		return lookupErr(err, "user", "delete user")
	}
	return nil
}

func (s *userService) GetProfile(ctx context.Context, actor access.Actor) (*dto.UserResponse, error) {
	if err := access.Authorize(actor, access.ActionRead, access.Target{Kind: access.KindProfile}); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, lookupErr(err, "user", "find user")
	}
	resp := dto.FromModelToUserResponse(user)
	return &resp, nil
}

// UpdateProfile never touches role or handle: the DTO has neither.
func (s *userService) UpdateProfile(ctx context.Context, actor access.Actor, req dto.UpdateProfileDTO) (*dto.UserResponse, error) {
	if err := access.Authorize(actor, access.ActionUpdate, access.Target{Kind: access.KindProfile}); err != nil {
		return nil, err
	}
	if err := dto.Check(req).OrNil(); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor.ID, profileFields(req.Email, req.FirstName, req.LastName, req.Bio))
}

func (s *userService) apply(ctx context.Context, id string, fields map[string]any) (*dto.UserResponse, error) {
	if len(fields) > 0 {
		if err := s.userRepo.Update(ctx, id, fields); err != nil {
			return nil, writeErr(err, "update user", "email already registered")
		}
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "user", "find user")
	}
	resp := dto.FromModelToUserResponse(user)
	return &resp, nil
}

func profileFields(email, firstName, lastName, bio *string) map[string]any {
	fields := map[string]any{}
	if email != nil {
		fields["email"] = strings.ToLower(strings.TrimSpace(*email))
	}
	if firstName != nil {
		fields["first_name"] = *firstName
	}
	if lastName != nil {
		fields["last_name"] = *lastName
	}
	if bio != nil {
		fields["bio"] = *bio
	}
	return fields
}

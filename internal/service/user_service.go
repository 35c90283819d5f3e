package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// userStore is the persistence surface the user service needs.
type userStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserAddress(ctx context.Context, userID string, address models.Address) error
	UpdateUserPaymentMethod(ctx context.Context, userID, method string) error
	MergeCartOnSignIn(ctx context.Context, sessionCartID, userID string) error
}

// UserService handles accounts, credentials and checkout profile updates.
type UserService struct {
	store  userStore
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(store userStore) *UserService {
	return &UserService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// SignUp creates an account with a bcrypt-hashed password.
func (us *UserService) SignUp(ctx context.Context, name, email, password string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.SignUp")
	defer span.End()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := us.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	us.logger.Info("User created", zap.String("user_id", user.ID))
	return user, nil
}

// SignIn verifies credentials and, when a session cart token is supplied,
// hands the anonymous cart over to the signing-in user. The merge replaces
// any cart the user already had.
func (us *UserService) SignIn(ctx context.Context, email, password, sessionCartID string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.SignIn")
	defer span.End()

	user, err := us.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if sessionCartID != "" {
		if err := us.store.MergeCartOnSignIn(ctx, sessionCartID, user.ID); err != nil {
			// Sign-in still succeeds; the shopper keeps whichever cart the
			// user record already owned.
			us.logger.Error("Failed to merge anonymous cart",
				zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return user, nil
}

// GetUser retrieves a user by id.
func (us *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return us.store.GetUserByID(ctx, userID)
}

// UpdateAddress stores the shipping address on the caller's profile.
func (us *UserService) UpdateAddress(ctx context.Context, userID string, address models.Address) error {
	return us.store.UpdateUserAddress(ctx, userID, address)
}

// UpdatePaymentMethod stores the selected checkout payment method.
func (us *UserService) UpdatePaymentMethod(ctx context.Context, userID, method string) error {
	if !models.ValidPaymentMethod(method) {
		return ErrInvalidPaymentMethod
	}
	return us.store.UpdateUserPaymentMethod(ctx, userID, method)
}

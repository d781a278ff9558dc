package services

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/aqtanberli/roadmap-tracker/internal/models"
	"github.com/aqtanberli/roadmap-tracker/internal/repository"
	"github.com/aqtanberli/roadmap-tracker/pkg/email"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var validRoles = map[string]bool{
	models.RoleAdmin:      true,
	models.RoleManager:    true,
	models.RoleInstructor: true,
	models.RoleTrainee:    true,
}

// UserService encapsulates the business logic for user operations.
type UserService struct {
	repo   *repository.UserRepository
	mailer *email.Sender
}

// NewUserService creates a new instance of UserService.
func NewUserService(repo *repository.UserRepository, mailer *email.Sender) *UserService {
	return &UserService{
		repo:   repo,
		mailer: mailer,
	}
}

// RegisterUser registers a new user after hashing their password.
func (s *UserService) RegisterUser(ctx context.Context, user *models.User) (*models.User, error) {
	logrus.Info("Registering new user")

	if user.Email == "" || user.Username == "" || user.HashedPassword == "" {
		logrus.Warn("Missing required fields during registration")
		return nil, fmt.Errorf("missing required user fields")
	}

	if !emailRegex.MatchString(user.Email) {
		logrus.WithField("email", user.Email).Warn("Invalid email format during registration")
		return nil, fmt.Errorf("invalid email format")
	}

	// Check if the email is already registered
	existingUser, _ := s.repo.GetUserByEmail(ctx, user.Email)
	if existingUser != nil {
		logrus.WithField("email", user.Email).Warn("Email already in use")
		return nil, fmt.Errorf("email already in use")
	}

	if user.Role == "" {
		user.Role = models.RoleTrainee
	}
	if !validRoles[user.Role] {
		return nil, fmt.Errorf("unknown role: %s", user.Role)
	}

	// Hash the user's password.
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(user.HashedPassword), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Error("Password hashing failed")
		return nil, fmt.Errorf("failed to hash password: %v", err)
	}
	user.HashedPassword = string(hashedPwd)

	user.VerifyToken = uuid.NewString()
	user.IsVerified = false

	createdUser, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		logrus.WithError(err).Error("User registration failed")
		return nil, fmt.Errorf("failed to register user: %v", err)
	}

	if s.mailer.Enabled() {
		verificationLink := fmt.Sprintf("/users/verify?token=%s", createdUser.VerifyToken)
		body := fmt.Sprintf("Welcome to Roadmap Tracker!\n\nPlease verify your email by opening the link below:\n%s", verificationLink)
		if err := s.mailer.Send(createdUser.Email, "Email Verification", body); err != nil {
			// Registration already succeeded; a lost email should not undo it.
			logrus.WithError(err).Error("Failed to send verification email")
		}
	}

	return createdUser, nil
}

// AuthenticateUser verifies credentials and returns the matching user.
func (s *UserService) AuthenticateUser(ctx context.Context, emailAddr, password string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		logrus.WithField("email", emailAddr).Warn("Password mismatch during login")
		return nil, fmt.Errorf("invalid email or password")
	}

	return user, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.repo.GetUserByVerifyToken(ctx, token)
	if err != nil {
		return fmt.Errorf("invalid verification token")
	}
	if err := s.repo.MarkUserVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to verify user: %v", err)
	}
	logrus.WithField("userID", user.ID.Hex()).Info("User email verified")
	return nil
}

// GetUser fetches a user by id.
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

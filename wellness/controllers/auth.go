package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"wellness/wellness/config"
	"wellness/wellness/middlewares"
	"wellness/wellness/services/notify"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/types"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 8
	// bcrypt refuses longer inputs.
	maxPasswordBytes = 72
)

type AuthController struct {
	userDAO  *dao.UserDAO
	notifier notify.Notifier
	cfg      config.Config
}

func NewAuthController(userDAO *dao.UserDAO, notifier notify.Notifier, cfg config.Config) *AuthController {
	return &AuthController{
		userDAO:  userDAO,
		notifier: notifier,
		cfg:      cfg,
	}
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLength {
		return badRequest(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if len(pw) > maxPasswordBytes {
		return badRequest(fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return badRequest("Password must contain upper case, lower case and a digit")
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", badRequest("Email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", badRequest("Invalid email address")
	}
	return email, nil
}

// CreateUser stores a confirmed account. admin adds the admins group on top of users.
func (c *AuthController) CreateUser(ctx context.Context, email, password string, fullName *string, admin bool) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := c.userDAO.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict("User with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	groups := []string{models.GroupUsers}
	if admin || c.cfg.IsAdminEmail(email) {
		groups = append(groups, models.GroupAdmins)
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Groups:       strings.Join(groups, ","),
	}
	if err := c.userDAO.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("User with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (c *AuthController) Register(ctx context.Context, req types.RegisterRequest) (*types.RegisterResponse, error) {
	defer logging.LogDuration(ctx, "auth_register")()

	user, err := c.CreateUser(ctx, req.Email, req.Password, req.FullName, false)
	if err != nil {
		return nil, err
	}
	logging.AppLogger.Info("user registered", zap.String("user_id", user.ID), zap.Strings("groups", user.GroupList()))

	name := ""
	if user.FullName != nil {
		name = *user.FullName
	}
	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := c.notifier.SendWelcome(ctx, user.Email, name); err != nil {
			logging.ErrorLogger.Error("welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}(context.WithoutCancel(ctx))

	return &types.RegisterResponse{
		Message: "User registered successfully",
		UserID:  user.ID,
		Email:   user.Email,
	}, nil
}

func (c *AuthController) Login(ctx context.Context, req types.LoginRequest) (*types.LoginResponse, error) {
	defer logging.LogDuration(ctx, "auth_login")()

	invalid := &Error{Kind: ErrUnauthorized, Message: "Invalid email or password"}
	user, err := c.userDAO.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}

	groups := user.GroupList()
	token, _, err := middlewares.SignToken(c.cfg, user.ID, user.Email, groups)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &types.LoginResponse{
		Token:     token,
		ExpiresIn: int64(c.cfg.JWTTTL.Seconds()),
		UserID:    user.ID,
		Groups:    groups,
	}, nil
}

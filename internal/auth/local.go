package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"storefront/internal/logger"
	"storefront/internal/models"
)

// LocalProvider keeps credential accounts in the users table.
type LocalProvider struct {
	db     *gorm.DB
	cost   int
	now    func() time.Time
	logger *logger.Logger
}

func NewLocalProvider(db *gorm.DB, logger *logger.Logger) *LocalProvider {
	return &LocalProvider{
		db:     db,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger.With("component", "auth"),
	}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := p.findByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newAuthError(CodeInvalidCredential, "Invalid email or password")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, newAuthError(CodeInvalidCredential, "Invalid email or password")
	}
	return user.Identity(), nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, newAuthError(CodeWeakPassword, "Password should be at least 6 characters")
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "lookup user")
	}
	if count > 0 {
		return nil, newAuthError(CodeEmailInUse, "An account already exists for this email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	user := &models.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
	}
	if err := p.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, errors.Wrap(err, "create user")
	}

	p.logger.Info("registered user %s", user.ID)
	return user.Identity(), nil
}

// ResetPassword records a reset request. Delivery of the reset mail is out of scope.
func (p *LocalProvider) ResetPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := p.findByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newAuthError(CodeUserNotFound, "No account exists for this email")
	}
	if err != nil {
		return err
	}

	now := p.now()
	return p.db.WithContext(ctx).Model(user).Update("password_reset_request", &now).Error
}

func (p *LocalProvider) UpdatePassword(ctx context.Context, uid, password string) error {
	if len(password) < MinPasswordLength {
		return newAuthError(CodeWeakPassword, "Password should be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	res := p.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Updates(map[string]interface{}{
		"password_hash":          string(hash),
		"password_reset_request": nil,
	})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update password")
	}
	if res.RowsAffected == 0 {
		return newAuthError(CodeUserNotFound, "No account exists for this user")
	}
	return nil
}

func (p *LocalProvider) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := p.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

var validate = validator.New()

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", &AuthError{Code: CodeInvalidEmail, Message: "The email address is badly formatted", Err: err}
	}
	return email, nil
}

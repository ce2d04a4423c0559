package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/models"
	"github.com/gradworks/thesis-flow-api/pkg/config"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
)

type accountStore interface {
	Get(ctx context.Context, id string) (*models.AccountDoc, error)
	FindByEmail(ctx context.Context, email string) (*models.AccountDoc, error)
	Put(ctx context.Context, account *models.AccountDoc) error
}

// AuthService issues and validates access tokens and provisions accounts
// together with their profile documents.
type AuthService struct {
	accounts accountStore
	students studentStore
	staff    staffStore
	jwtCfg   config.JWTConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthService creates a service instance.
func NewAuthService(accounts accountStore, students studentStore, staff staffStore, jwtCfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts: accounts,
		students: students,
		staff:    staff,
		jwtCfg:   jwtCfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// Login verifies credentials and issues an HS256 token.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if !account.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.jwtCfg.Expiration)
	claims := models.JWTClaims{
		UserID:     account.ID,
		Role:       account.Role,
		Faculty:    account.Faculty,
		Department: account.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	s.logger.Info("user logged in", zap.String("user_id", account.ID), zap.String("role", string(account.Role)))
	return &dto.LoginResponse{Token: token, ExpiresAt: expiresAt.Unix()}, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.Role.Valid() {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

// Provision creates an account and the matching profile document. Students
// get a StudentProfile, staff roles a StaffProfile; admin accounts carry no
// profile.
func (s *AuthService) Provision(ctx context.Context, req dto.ProvisionRequest) (*models.Account, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid provisioning payload")
	}
	role := models.Role(req.Role)
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role "+req.Role)
	}
	if _, err := s.accounts.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	account := &models.AccountDoc{
		Account: models.Account{
			ID:         uuid.NewString(),
			Email:      req.Email,
			FullName:   req.FullName,
			Role:       role,
			Faculty:    req.Faculty,
			Department: req.Department,
			Active:     true,
			CreatedAt:  now,
		},
		PasswordHash: string(hash),
	}

	switch role {
	case models.RoleStudent:
		student := &models.StudentProfile{
			ID:           account.ID,
			Email:        req.Email,
			FullName:     req.FullName,
			Faculty:      req.Faculty,
			Department:   req.Department,
			DegreeLevel:  req.DegreeLevel,
			ThesisStatus: models.ThesisStatusNotSubmitted,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.students.Put(ctx, student); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create student profile")
		}
	case models.RoleSupervisor, models.RoleConsultant, models.RoleReviewer, models.RoleHOD, models.RoleDean:
		staff := &models.StaffProfile{
			ID:         account.ID,
			Email:      req.Email,
			FullName:   req.FullName,
			Faculty:    req.Faculty,
			Department: req.Department,
			Role:       role,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.staff.Put(ctx, staff); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create staff profile")
		}
	}

	if err := s.accounts.Put(ctx, account); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create account")
	}
	s.logger.Info("account provisioned",
		zap.String("user_id", account.ID),
		zap.String("role", string(role)),
		zap.String("faculty", req.Faculty))

	result := account.Account
	return &result, nil
}

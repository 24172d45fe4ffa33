package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/fieldops/interventions-api/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CreateUserInput is what an administrator supplies to create an account.
type CreateUserInput struct {
	Name        string
	Email       string
	Phone       string
	Password    string
	Role        models.Role
	Auth0ID     string
	Skills      []string
	Permissions []string
}

// UpdateUserInput carries optional changes; nil means "leave as is".
type UpdateUserInput struct {
	Name        *string
	Email       *string
	Phone       *string
	Password    *string
	Skills      []string
	Permissions []string
	// TechnicianStatus changes a technician's availability.
	TechnicianStatus *string
}

// ResetNotifier delivers password reset tokens to their owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *models.User, token string, expires time.Time) error
}

// LogResetNotifier records that a reset was issued without delivering it.
// It stands in until an email provider is configured.
type LogResetNotifier struct{}

// SendPasswordReset logs the reset request. The token itself is never logged.
func (LogResetNotifier) SendPasswordReset(_ context.Context, user *models.User, _ string, expires time.Time) error {
	log.Info().Uint("user_id", user.ID).Time("expires", expires).Msg("password reset issued")
	return nil
}

// AccountService owns user records and the administrator permission rules.
type AccountService struct {
	db       *gorm.DB
	notifier ResetNotifier
	resetTTL time.Duration
	now      func() time.Time
}

// NewAccountService creates an account service on db
func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		db:       db,
		notifier: LogResetNotifier{},
		resetTTL: time.Hour,
		now:      time.Now,
	}
}

// WithResetNotifier replaces the password reset delivery channel.
func (s *AccountService) WithResetNotifier(n ResetNotifier) *AccountService {
	s.notifier = n
	return s
}

// WithResetTTL sets how long reset tokens stay valid.
func (s *AccountService) WithResetTTL(ttl time.Duration) *AccountService {
	if ttl > 0 {
		s.resetTTL = ttl
	}
	return s
}

// GetUser loads a user by primary key.
func (s *AccountService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// FindByAuth0ID resolves the identity provider subject to a local user.
func (s *AccountService) FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("user")
		}
		return nil, err
	}
	return &user, nil
}

// RegisterClient creates the client account for a newly seen identity.
func (s *AccountService) RegisterClient(ctx context.Context, auth0ID, name, email string) (*models.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalid("name", "is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	user := &models.User{
		Auth0ID: &auth0ID,
		Name:    strings.TrimSpace(name),
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Role:    models.RoleClient,
	}
	if err := s.save(s.db.WithContext(ctx), user, nil); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser creates an account of any role on behalf of an administrator.
// Creating an administrator needs full_access; any other role needs
// manage_users.
func (s *AccountService) CreateUser(ctx context.Context, actor *models.User, in CreateUserInput) (*models.User, error) {
	if !in.Role.IsValid() {
		return nil, invalid("role", "must be one of client, technician, administrator")
	}
	if err := authorizeAccountChange(actor, in.Role); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, invalid("password", "must be at least %d characters", MinPasswordLength)
	}

	user := &models.User{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Phone: strings.TrimSpace(in.Phone),
		Role:  in.Role,
	}
	if in.Auth0ID != "" {
		auth0ID := in.Auth0ID
		user.Auth0ID = &auth0ID
	}
	// Role specific fields only land on the matching variant.
	switch in.Role {
	case models.RoleTechnician:
		user.Technician = models.TechnicianProfile{
			SkillsList: normalizeSkills(in.Skills),
			Status:     models.TechnicianAvailable,
		}
	case models.RoleAdministrator:
		user.Administrator = models.AdministratorProfile{
			PermissionsList: models.FilterPermissions(in.Permissions),
		}
	}

	password := in.Password
	if err := s.save(s.db.WithContext(ctx), user, &password); err != nil {
		return nil, err
	}
	log.Info().Uint("actor_id", actor.ID).Uint("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

// UpdateUser edits an account on behalf of an administrator. Editing an
// administrator needs full_access; any other account needs manage_users.
func (s *AccountService) UpdateUser(ctx context.Context, actor *models.User, id uint, in UpdateUserInput) (*models.User, error) {
	var updated *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.User
		if err := tx.First(&target, id).Error; err != nil {
			if isRecordNotFound(err) {
				return notFound("user")
			}
			return err
		}
		if err := authorizeAccountChange(actor, target.Role); err != nil {
			return err
		}
		if err := applyUserUpdate(&target, in); err != nil {
			return err
		}
		if err := s.save(tx, &target, in.Password); err != nil {
			return err
		}
		updated = &target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateProfile lets a user change their own contact details.
func (s *AccountService) UpdateProfile(ctx context.Context, user *models.User, name, phone *string) (*models.User, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, invalid("name", "cannot be empty")
	}
	if name != nil {
		user.Name = strings.TrimSpace(*name)
	}
	if phone != nil {
		user.Phone = strings.TrimSpace(*phone)
	}
	if err := s.save(s.db.WithContext(ctx), user, nil); err != nil {
		return nil, err
	}
	return user, nil
}

// SetAvailability flips a technician between Available and Unavailable.
func (s *AccountService) SetAvailability(ctx context.Context, user *models.User, status string) (*models.User, error) {
	tech, ok := user.AsTechnician()
	if !ok {
		return nil, forbidden("Only technicians have an availability status")
	}
	if status != models.TechnicianAvailable && status != models.TechnicianUnavailable {
		return nil, invalid("status", "must be %q or %q", models.TechnicianAvailable, models.TechnicianUnavailable)
	}
	tech.Status = status
	if err := s.save(s.db.WithContext(ctx), user, nil); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser soft deletes an account. Accounts holding full_access can never
// be deleted, whoever asks.
func (s *AccountService) DeleteUser(ctx context.Context, actor *models.User, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.User
		if err := tx.First(&target, id).Error; err != nil {
			if isRecordNotFound(err) {
				return notFound("user")
			}
			return err
		}
		if target.HasFullAccess() {
			return forbidden("Users with full_access cannot be deleted")
		}
		if err := authorizeAccountChange(actor, target.Role); err != nil {
			return err
		}
		if err := tx.Delete(&target).Error; err != nil {
			return err
		}
		log.Info().Uint("actor_id", actor.ID).Uint("user_id", target.ID).Msg("user deleted")
		return nil
	})
}

// ListUsers returns accounts, optionally filtered by role. Needs manage_users.
func (s *AccountService) ListUsers(ctx context.Context, actor *models.User, role models.Role) ([]models.User, error) {
	if !models.Authorize(actor, models.CapabilityManageUsers) {
		return nil, missingCapability("manage_users permission required")
	}
	query := s.db.WithContext(ctx).Order("id ASC")
	if role != "" {
		if !role.IsValid() {
			return nil, invalid("role", "must be one of client, technician, administrator")
		}
		query = query.Where("role = ?", role)
	}
	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// RequestPasswordReset issues a reset token for the account with email.
// Unknown emails succeed silently so callers cannot probe for accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if isRecordNotFound(err) {
			return nil
		}
		return err
	}

	token := uuid.NewString()
	expires := s.now().Add(s.resetTTL)
	user.ResetToken = &token
	user.ResetTokenExpiry = &expires
	if err := s.save(s.db.WithContext(ctx), &user, nil); err != nil {
		return err
	}
	return s.notifier.SendPasswordReset(ctx, &user, token, expires)
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return invalid("token", "is required")
	}
	if len(newPassword) < MinPasswordLength {
		return invalid("password", "must be at least %d characters", MinPasswordLength)
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("reset_token = ?", token).First(&user).Error; err != nil {
		if isRecordNotFound(err) {
			return invalid("token", "is invalid or expired")
		}
		return err
	}
	if user.ResetTokenExpiry == nil || s.now().After(*user.ResetTokenExpiry) {
		return invalid("token", "is invalid or expired")
	}
	user.ResetToken = nil
	user.ResetTokenExpiry = nil
	return s.save(s.db.WithContext(ctx), &user, &newPassword)
}

// save is the only write path for users: it always stamps UpdatedAt and
// re-hashes whenever a new password is supplied.
func (s *AccountService) save(tx *gorm.DB, user *models.User, newPassword *string) error {
	if newPassword != nil {
		if len(*newPassword) < MinPasswordLength {
			return invalid("password", "must be at least %d characters", MinPasswordLength)
		}
		hash, err := HashPassword(*newPassword)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.now()
	if err := tx.Save(user).Error; err != nil {
		if isDuplicateKey(err) {
			return &StateConflictError{Code: "EMAIL_EXISTS", Message: "A user with this email or identity already exists"}
		}
		return err
	}
	return nil
}

// authorizeAccountChange applies the escalation rule: administrators can
// only be created, edited or deleted by a full_access holder.
func authorizeAccountChange(actor *models.User, targetRole models.Role) error {
	if targetRole == models.RoleAdministrator {
		if !actor.HasFullAccess() {
			return missingCapability("full_access permission required to manage administrators")
		}
		return nil
	}
	if !models.Authorize(actor, models.CapabilityManageUsers) {
		return missingCapability("manage_users permission required")
	}
	return nil
}

func applyUserUpdate(target *models.User, in UpdateUserInput) error {
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return invalid("name", "cannot be empty")
		}
		target.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		if err := validateEmail(*in.Email); err != nil {
			return err
		}
		target.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Phone != nil {
		target.Phone = strings.TrimSpace(*in.Phone)
	}
	if tech, ok := target.AsTechnician(); ok {
		if in.Skills != nil {
			tech.SkillsList = normalizeSkills(in.Skills)
		}
		if in.TechnicianStatus != nil {
			if *in.TechnicianStatus != models.TechnicianAvailable && *in.TechnicianStatus != models.TechnicianUnavailable {
				return invalid("status", "must be %q or %q", models.TechnicianAvailable, models.TechnicianUnavailable)
			}
			tech.Status = *in.TechnicianStatus
		}
	}
	if admin, ok := target.AsAdministrator(); ok && in.Permissions != nil {
		admin.PermissionsList = models.FilterPermissions(in.Permissions)
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func normalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

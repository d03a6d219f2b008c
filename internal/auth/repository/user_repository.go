package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	authdomain "welcome-agent/internal/auth/domain"
)

// UserRepository persists accounts and their sessions.
type UserRepository interface {
	Create(user *authdomain.User) error
	FindByEmail(email string) (*authdomain.User, error)
	FindByID(id string) (*authdomain.User, error)
	FindByIDs(ids []string) ([]authdomain.User, error)
	Update(user *authdomain.User) error

	CreateSession(session *authdomain.Session) error
	FindSession(id string) (*authdomain.Session, error)
	DeleteSession(id string) error
	DeleteExpiredSessions(now time.Time) (int64, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

// Create assigns an id and copies the plan limits onto a new account.
func (r *userRepository) Create(user *authdomain.User) error {
	now := time.Now().UTC()
	user.ID = uuid.New().String()
	if user.Plan == "" {
		user.Plan = authdomain.PlanFree
	}
	user.Limits = authdomain.LimitsFor(user.Plan)
	user.LastUsageReset = now
	user.CreatedAt = now
	user.UpdatedAt = now
	return r.db.Create(user).Error
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIDs(ids []string) ([]authdomain.User, error) {
	var users []authdomain.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// Update writes profile fields only; usage counters are owned by the quota package.
func (r *userRepository) Update(user *authdomain.User) error {
	user.UpdatedAt = time.Now().UTC()
	return r.db.Model(&authdomain.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"name":       user.Name,
		"avatar_url": user.AvatarURL,
		"password":   user.Password,
		"updated_at": user.UpdatedAt,
	}).Error
}

func (r *userRepository) CreateSession(session *authdomain.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.CreatedAt = time.Now().UTC()
	return r.db.Create(session).Error
}

func (r *userRepository) FindSession(id string) (*authdomain.Session, error) {
	var session authdomain.Session
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *userRepository) DeleteSession(id string) error {
	return r.db.Where("id = ?", id).Delete(&authdomain.Session{}).Error
}

func (r *userRepository) DeleteExpiredSessions(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", now.UTC()).Delete(&authdomain.Session{})
	return res.RowsAffected, res.Error
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tradehub/models"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the token payload.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (s Service) Register(
	ctx context.Context,
	username, password string,
) (models.User, error) {
	_, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return models.User{}, models.ErrUsernameTaken
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.User{}, err
	}

	hashed, err := bcryptHash(password)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{
		ID:            s.newID(),
		Username:      username,
		Password:      hashed,
		Notifications: []models.Notification{},
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return models.User{}, err
	}
	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

func (s Service) Login(
	ctx context.Context,
	username, password string,
) (string, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidCredentials
		}
		return "", err
	}
	if !bcryptCompare(user.Password, password) {
		return "", models.ErrInvalidCredentials
	}
	return s.generateJWT(user)
}

// Authenticate verifies the Authorization header value and returns the
// identity it carries.
func (s Service) Authenticate(rawHeader string) (models.Principal, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(rawHeader, bearerPrefix) {
		return models.Principal{}, models.ErrUnauthorized
	}
	tokenStr := strings.TrimSpace(rawHeader[len(bearerPrefix):])
	if tokenStr == "" {
		return models.Principal{}, models.ErrUnauthorized
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, models.ErrForbidden
	}
	if claims.ID == "" {
		return models.Principal{}, models.ErrForbidden
	}
	return models.Principal{ID: claims.ID, Username: claims.Username}, nil
}

func (s Service) generateJWT(user models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		Claims{
			ID:       user.ID,
			Username: user.Username,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			},
		},
	)
	tokenStr, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}
	return tokenStr, nil
}

func bcryptHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(
		[]byte(password),
		bcrypt.DefaultCost,
	)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func bcryptCompare(hashed, password string) bool {
	err := bcrypt.CompareHashAndPassword(
		[]byte(hashed),
		[]byte(password),
	)
	return err == nil
}

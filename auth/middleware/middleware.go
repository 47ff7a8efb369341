package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/basit/shifter/auth"
	"github.com/basit/shifter/models"
)

const (
	UserIDKey  = "userID"
	UserKey    = "user"
	SessionKey = "user_id"
)

type UserLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticator identifies the caller from a bearer token or, failing
// that, from the cookie session.
type Authenticator struct {
	tokens *auth.TokenManager
	users  UserLookup
}

func NewAuthenticator(tokens *auth.TokenManager, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

func (a *Authenticator) identify(c *gin.Context) *models.User {
	var userID uuid.UUID

	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		id, err := a.tokens.ValidateToken(strings.TrimSpace(parts[1]), auth.TokenAccess)
		if err != nil {
			return nil
		}
		userID = id
	} else if raw, ok := sessions.Default(c).Get(SessionKey).(string); ok {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil
		}
		userID = id
	} else {
		return nil
	}

	user, err := a.users.Get(c.Request.Context(), userID)
	if err != nil {
		return nil
	}
	return user
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
}

// AuthOptional attaches the caller when one can be identified and lets
// anonymous requests through.
func (a *Authenticator) AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := a.identify(c); user != nil {
			setUser(c, user)
		}
		c.Next()
	}
}

func (a *Authenticator) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := a.identify(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// PasswordCurrent blocks users who must change their password before
// doing anything else. It runs after AuthRequired.
func PasswordCurrent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := CurrentUser(c); user != nil && user.ChangePasswordOnLogin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Password change required"})
			return
		}
		c.Next()
	}
}

// StaffRequired runs after AuthRequired.
func StaffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := CurrentUser(c); user == nil || !user.IsStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Staff access required"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

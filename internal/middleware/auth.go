package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/models"
)

const actorKey = "actor"

// Claims is the token issued by the auth service.
type Claims struct {
	UserID   string `json:"user_id"`
	Fullname string `json:"fullname"`
	Avatar   string `json:"avatar"`
	jwt.RegisteredClaims
}

var errInvalidSubject = errors.New("token has no valid user_id")

// ParseToken verifies an HS256 token and returns the actor it names.
func ParseToken(secret, tokenString string) (models.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Actor{}, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil || id == uuid.Nil {
		return models.Actor{}, errInvalidSubject
	}
	return models.Actor{ID: id, Fullname: claims.Fullname, Avatar: claims.Avatar}, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified actor on the gin context.
func RequireAuth(secret string, log *logger.Logger) gin.HandlerFunc {
	log = log.With("middleware", "RequireAuth")
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		actor, err := ParseToken(secret, tokenString)
		if err != nil {
			log.Debug("Rejected token", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		c.Set(actorKey, actor)
		c.Set("user_id", actor.ID)
		c.Next()
	}
}

// ActorFrom returns the actor set by RequireAuth.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

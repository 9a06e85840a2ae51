package auth

import (
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/appify-backend/internal/users"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxUserDBID    = "user_db_id"
)

// WithUser resolves the request identity and upserts the user row. With a
// Firebase client the Bearer token is verified; without one (local
// development) the X-User-* headers are trusted, falling back to
// "demo-user".
func WithUser(authClient *fbauth.Client, userRepo *users.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var up users.UpsertUser

		if authClient != nil {
			token := extractToken(c)
			if token == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing authorization token"})
				c.Abort()
				return
			}
			decoded, err := authClient.VerifyIDToken(c.Request.Context(), token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
				c.Abort()
				return
			}
			up.FirebaseUID = decoded.UID
			if email, ok := decoded.Claims["email"].(string); ok {
				up.Email = email
			}
			if name, ok := decoded.Claims["name"].(string); ok {
				up.DisplayName = name
			}
			if pic, ok := decoded.Claims["picture"].(string); ok {
				up.PhotoURL = pic
			}
		} else {
			up.FirebaseUID = strings.TrimSpace(c.GetHeader("X-User-Id"))
			if up.FirebaseUID == "" {
				up.FirebaseUID = "demo-user"
			}
			up.Email = c.GetHeader("X-User-Email")
			up.DisplayName = c.GetHeader("X-User-Name")
			up.PhotoURL = c.GetHeader("X-User-Photo")
		}

		uid, err := userRepo.EnsureUser(c.Request.Context(), up)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			c.Abort()
			return
		}

		c.Set(CtxFirebaseUID, up.FirebaseUID)
		c.Set(CtxUserDBID, uid)
		c.Next()
	}
}

// UserFirebaseUID extracts the Firebase UID set by WithUser.
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}

func UserDBID(c *gin.Context) string {
	v := c.GetString(CtxUserDBID)
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}

// extractToken extracts the Bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return ""
}

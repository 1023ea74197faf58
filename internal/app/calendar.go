package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/config"
	"interview-scheduler/internal/model"
)

const (
	stateTTL      = 10 * time.Minute
	stateAudience = "calendar-connect"
)

type oauthExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

type credentialWriter interface {
	Upsert(ctx context.Context, c *model.CalendarCredential) error
}

// NewOAuthConfig returns nil when the Google client is not configured.
func NewOAuthConfig(g config.GoogleConfig) *oauth2.Config {
	if !g.Enabled() {
		return nil
	}
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  g.RedirectURL,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}

var errCalendarDisabled = apperr.New("CALENDAR_NOT_CONFIGURED", http.StatusServiceUnavailable, "Google Calendar is not configured")

// GET /api/calendar/auth?employer_id=
func (a *App) CalendarAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		a.respondError(c, errCalendarDisabled)
		return
	}
	employerID := c.Query("employer_id")
	if employerID == "" {
		a.respondError(c, apperr.Invalid("employer_id is required"))
		return
	}

	now := a.clock()
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   employerID,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}).SignedString(a.StateSecret)
	if err != nil {
		a.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": a.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce),
		"state":    state,
	})
}

// GET /oauth2callback?code=&state=
func (a *App) OAuthCallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		a.respondError(c, errCalendarDisabled)
		return
	}
	code := c.Query("code")
	if code == "" {
		a.respondError(c, apperr.Invalid("authorization code required"))
		return
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(c.Query("state"), claims, func(*jwt.Token) (any, error) {
		return a.StateSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil || claims.Subject == "" {
		a.respondError(c, apperr.Wrap(err, apperr.ErrUnauthorized, "invalid or expired state"))
		return
	}

	token, err := a.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		a.logger().Warn("oauth code exchange failed", zap.String("employer_id", claims.Subject), zap.Error(err))
		a.respondError(c, apperr.Wrap(err, apperr.ErrExternalProvider, "failed to exchange code for token"))
		return
	}

	cred := &model.CalendarCredential{
		EmployerID:   claims.Subject,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	if err := a.Credentials.Upsert(c.Request.Context(), cred); err != nil {
		a.respondError(c, err)
		return
	}
	a.logger().Info("calendar connected", zap.String("employer_id", claims.Subject))

	c.JSON(http.StatusOK, gin.H{"connected": true, "employer_id": claims.Subject})
}

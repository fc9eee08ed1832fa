package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/domain"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/dto"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/session"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/audit"
	"github.com/cuongbtq/legacyjobs-dashboard/shared/sqldb"
	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// RequireSession loads the session named by the cookie. Without one, pages
// redirect to the login form and API calls get 401.
func (h *Handler) RequireSession(api bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := h.currentSession(c)
		if !ok {
			if api {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": domain.ErrNotAuthenticated.Error(),
				})
				return
			}
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

func (h *Handler) currentSession(c *gin.Context) (*session.Session, bool) {
	id, err := c.Cookie(session.CookieName)
	if err != nil || id == "" {
		return nil, false
	}
	return h.sessions.Get(id)
}

func sessionFrom(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (h *Handler) setSessionCookie(c *gin.Context, id string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, id, maxAge, "/", "", h.settings.SecureCookies, true)
}

// LoginPage handles GET /login
func (h *Handler) LoginPage(c *gin.Context) {
	if _, ok := h.currentSession(c); ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	d := h.settings.Login
	c.HTML(http.StatusOK, "login.html", dto.LoginView{
		Title:     h.settings.Title,
		Server:    d.Server,
		Database:  d.Database,
		Encrypt:   d.Encrypt,
		TrustCert: d.TrustCert,
	})
}

// Login handles POST /login
// Opens (or reuses) the database connection for the typed credentials and
// starts a dashboard session on page 1.
func (h *Handler) Login(c *gin.Context) {
	var form dto.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Warn("Invalid login form", slog.String("error", err.Error()))
		c.HTML(http.StatusBadRequest, "login.html", dto.LoginView{
			Title:     h.settings.Title,
			Server:    form.Server,
			Database:  form.Database,
			User:      form.User,
			Encrypt:   form.Encrypt,
			TrustCert: form.TrustCert,
			Error:     "server and database are required",
		})
		return
	}

	creds := sqldb.Credentials{
		Server:    form.Server,
		Database:  form.Database,
		User:      form.User,
		Password:  form.Password,
		Encrypt:   form.Encrypt,
		TrustCert: form.TrustCert,
	}

	if _, err := h.connector.Acquire(c.Request.Context(), creds); err != nil {
		h.logger.Warn("Login failed", slog.Any("credentials", creds), slog.Any("error", err))
		h.audit.Record(c.Request.Context(), audit.Event{
			Type:     audit.EventLoginFailed,
			User:     creds.User,
			Server:   creds.Server,
			Database: creds.Database,
			RemoteIP: c.ClientIP(),
			Detail:   err.Error(),
		})

		c.HTML(http.StatusUnauthorized, "login.html", dto.LoginView{
			Title:     h.settings.Title,
			Server:    form.Server,
			Database:  form.Database,
			User:      form.User,
			Encrypt:   form.Encrypt,
			TrustCert: form.TrustCert,
			Error:     err.Error(),
			Hint:      sqldb.Hint(err),
		})
		return
	}

	sess := h.sessions.Create(creds)
	// Browser-session cookie; idle expiry is enforced by the store
	h.setSessionCookie(c, sess.ID, 0)

	h.logger.Info("Operator logged in", slog.String("session", sess.ID), slog.Any("credentials", creds))
	h.audit.Record(c.Request.Context(), audit.Event{
		Type:      audit.EventLogin,
		SessionID: sess.ID,
		User:      creds.User,
		Server:    creds.Server,
		Database:  creds.Database,
		RemoteIP:  c.ClientIP(),
	})

	c.Redirect(http.StatusSeeOther, "/")
}

// Logout handles POST /logout
func (h *Handler) Logout(c *gin.Context) {
	if id, err := c.Cookie(session.CookieName); err == nil && id != "" {
		h.endSession(c, id)
	}

	h.setSessionCookie(c, "", -1)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *Handler) endSession(c *gin.Context, id string) {
	sess, ok := h.sessions.Delete(id)
	if !ok {
		return
	}

	h.releaseIfUnused(sess.Credentials)
	h.logger.Info("Operator logged out", slog.String("session", sess.ID))
	h.audit.Record(c.Request.Context(), audit.Event{
		Type:      audit.EventLogout,
		SessionID: sess.ID,
		User:      sess.Credentials.User,
		Server:    sess.Credentials.Server,
		Database:  sess.Credentials.Database,
		RemoteIP:  c.ClientIP(),
	})
}

// connectionLost ends the session after its handle could not be acquired and
// sends the operator back to the login form with the driver error.
func (h *Handler) connectionLost(c *gin.Context, sess *session.Session, err error) {
	h.logger.Error("Database connection unavailable", slog.String("session", sess.ID), slog.Any("error", err))

	h.endSession(c, sess.ID)
	h.setSessionCookie(c, "", -1)

	var connErr *sqldb.ConnectionError
	status := http.StatusServiceUnavailable
	if errors.As(err, &connErr) {
		status = http.StatusUnauthorized
	}

	creds := sess.Credentials
	c.HTML(status, "login.html", dto.LoginView{
		Title:     h.settings.Title,
		Server:    creds.Server,
		Database:  creds.Database,
		User:      creds.User,
		Encrypt:   creds.Encrypt,
		TrustCert: creds.TrustCert,
		Error:     err.Error(),
		Hint:      sqldb.Hint(err),
	})
}

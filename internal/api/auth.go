package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/taskdesk/internal/audit"
	"github.com/nerrad567/taskdesk/internal/auth"
	"github.com/nerrad567/taskdesk/internal/infrastructure/influxdb"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	WorkArea    string `json:"work_area"`
	Description string `json:"description"`
	// Role is accepted on the wire and ignored; accounts start as RoleUser.
	Role string `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	TokenType string     `json:"token_type"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *auth.User `json:"user"`
}

// handleRegister creates a standard account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		WorkArea:    req.WorkArea,
		Description: req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			s.influx.WriteAuthEvent("register", influxdb.OutcomeFailure)
			writeConflict(w, "email already registered")
		case errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrPasswordTooShort),
			errors.Is(err, auth.ErrNameRequired):
			s.influx.WriteAuthEvent("register", influxdb.OutcomeFailure)
			writeValidation(w, err.Error())
		default:
			s.logger.Error("register failed", "error", err)
			writeInternalError(w, "failed to register")
		}
		return
	}

	if req.Role != "" && req.Role != string(auth.RoleUser) {
		s.logger.Warn("ignored role on self-registration", "user_id", user.ID, "requested_role", req.Role)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	s.influx.WriteAuthEvent("register", influxdb.OutcomeSuccess)
	s.recorder.Record(audit.ActionRegister, audit.EntityUser, user.ID, user.ID, nil)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "registration successful",
		"user":    user,
	})
}

// handleLogin verifies credentials and issues a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.influx.WriteAuthEvent("login", influxdb.OutcomeFailure)
			s.recorder.Record(audit.ActionLoginFailed, audit.EntityUser, "", "", nil)
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "failed to log in")
		return
	}

	s.influx.WriteAuthEvent("login", influxdb.OutcomeSuccess)
	s.recorder.Record(audit.ActionLogin, audit.EntityUser, session.User.ID, session.User.ID, nil)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		TokenType: "Bearer",
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

// handleMe returns the caller's own identity.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()))
}

// handleUpdateProfile updates the caller's self-service fields from a JSON
// or multipart body. Role, email and password are never read from it.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var (
		profile auth.Profile
		ok      bool
	)
	if isMultipart(r) {
		profile, ok = s.readMultipartProfile(w, r)
	} else {
		profile, ok = readJSONProfile(w, r)
	}
	if !ok {
		return
	}

	if profile.Name != nil {
		name := strings.TrimSpace(*profile.Name)
		if name == "" {
			s.discardUpload(profile.ProfilePicture)
			writeValidation(w, auth.ErrNameRequired.Error())
			return
		}
		profile.Name = &name
	}

	updated, err := s.users.UpdateProfile(r.Context(), user.ID, profile)
	if err != nil {
		s.discardUpload(profile.ProfilePicture)
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, msgNotAuthenticated)
			return
		}
		s.logger.Error("update profile failed", "user_id", user.ID, "error", err)
		writeInternalError(w, "failed to update profile")
		return
	}

	if profile.ProfilePicture != nil && user.ProfilePicture != *profile.ProfilePicture {
		s.discardUpload(&user.ProfilePicture)
	}
	s.recorder.Record(audit.ActionProfile, audit.EntityUser, user.ID, user.ID, nil)

	writeJSON(w, http.StatusOK, updated)
}

type profileRequest struct {
	Name        *string `json:"name"`
	WorkArea    *string `json:"work_area"`
	Description *string `json:"description"`
}

func readJSONProfile(w http.ResponseWriter, r *http.Request) (auth.Profile, bool) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return auth.Profile{}, false
	}
	return auth.Profile{
		Name:        trimPtr(req.Name),
		WorkArea:    trimPtr(req.WorkArea),
		Description: trimPtr(req.Description),
	}, true
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

// handleWSTicket issues a single-use WebSocket ticket bound to the caller.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	ticket := s.tickets.issue(user.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	now     func() time.Time
	mu      sync.Mutex
}

type ticketEntry struct {
	userID    string
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

func (ts *ticketStore) issue(userID string) string {
	ticket := generateTicket()

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		userID:    userID,
		expiresAt: ts.now().Add(ticketTTL),
	}
	ts.mu.Unlock()

	return ticket
}

// consume validates and removes a ticket, returning the user it was issued to.
func (ts *ticketStore) consume(ticket string) (string, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return "", false
	}
	delete(ts.tickets, ticket)

	if !ts.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.userID, true
}

// cleanExpired removes expired tickets from the store.
func (ts *ticketStore) cleanExpired() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	for ticket, entry := range ts.tickets {
		if !now.Before(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// cleanLoop runs cleanExpired periodically until the context is cancelled.
func (ts *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.cleanExpired()
		}
	}
}

func (ts *ticketStore) size() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tickets)
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

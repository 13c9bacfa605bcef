package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/quarryhq/quarry/pkg/audit"
	"github.com/quarryhq/quarry/pkg/auth"
	"github.com/quarryhq/quarry/pkg/httputil"
)

// handleSignup registers a new account. Registration is open to anyone old
// enough to consent to data processing.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid birth date")
		return
	}

	user := &auth.User{
		Username:        req.Username,
		Email:           req.Email,
		CanBeContacted:  req.CanBeContacted,
		CanDataBeShared: req.CanDataBeShared,
		BirthDate:       &birthDate,
	}
	if !user.OldEnough(time.Now()) {
		httputil.WriteErrorMessage(w, http.StatusForbidden,
			"you must be at least "+strconv.Itoa(auth.MinimumAge)+" years old to register")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.WithError(err).Error("failed to hash password")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}
	user.PasswordHash = hash

	if err := s.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrDuplicateUser) {
			httputil.WriteErrorMessage(w, http.StatusConflict, "username or email already taken")
			return
		}
		s.logger.WithError(err).Error("failed to create user")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("user registered")
	httputil.WriteCreated(w, user)
}

// handleLogin exchanges credentials for a token pair. Failed attempts are
// answered identically whether the username or the password was wrong.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	user, err := s.users.UserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			s.recordEvent(r, nil, audit.ActionLoginFailed, "user", req.Username, audit.DecisionDeny)
			httputil.WriteUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.WithError(err).Error("failed to look up user")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}

	if !user.IsActive || !s.hasher.Verify(user.PasswordHash, req.Password) {
		s.recordEvent(r, &user.ID, audit.ActionLoginFailed, "user", req.Username, audit.DecisionDeny)
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	pair, err := s.issueTokenPair(r, user)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to issue tokens")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}

	s.recordEvent(r, &user.ID, audit.ActionLogin, "user", strconv.FormatInt(user.ID, 10), audit.DecisionAllow)
	httputil.WriteSuccess(w, pair)
}

// handleRefresh rotates a refresh token: the presented token is revoked and
// a fresh pair is issued. A stolen token therefore works at most once.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	if err := s.tokens.ValidateTokenFormat(req.RefreshToken); err != nil {
		httputil.WriteUnauthorized(w, "invalid refresh token")
		return
	}

	stored, err := s.users.RefreshTokenByHash(r.Context(), s.tokens.HashToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			httputil.WriteUnauthorized(w, "invalid refresh token")
			return
		}
		s.logger.WithError(err).Error("failed to look up refresh token")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}
	if !stored.Valid(time.Now()) {
		httputil.WriteUnauthorized(w, "refresh token expired or revoked")
		return
	}

	user, err := s.users.UserByID(r.Context(), stored.UserID)
	if err != nil || !user.IsActive {
		httputil.WriteUnauthorized(w, "invalid refresh token")
		return
	}

	if err := s.users.RevokeRefreshToken(r.Context(), stored.ID); err != nil {
		s.logger.WithError(err).Error("failed to revoke refresh token")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}

	pair, err := s.issueTokenPair(r, user)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to issue tokens")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}

	s.recordEvent(r, &user.ID, audit.ActionTokenRefresh, "user", strconv.FormatInt(user.ID, 10), audit.DecisionAllow)
	httputil.WriteSuccess(w, pair)
}

// handleLogout revokes every outstanding refresh token for the caller.
// Access tokens stay valid until they expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r)
	if err := s.users.RevokeUserTokens(r.Context(), user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to revoke tokens")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) issueTokenPair(r *http.Request, user *auth.User) (*auth.TokenPair, error) {
	access, expiresAt, err := s.jwt.Issue(user)
	if err != nil {
		return nil, err
	}

	refresh, refreshHash, refreshPrefix, err := s.tokens.GenerateToken()
	if err != nil {
		return nil, err
	}
	if err := s.users.StoreRefreshToken(r.Context(), &auth.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		TokenPrefix: refreshPrefix,
		ExpiresAt:   time.Now().Add(s.refreshTTL),
	}); err != nil {
		return nil, err
	}

	return &auth.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// handleGetProfile returns the caller's own account
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.currentUser(r))
}

// handleUpdateProfile updates the caller's email and consent flags
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req auth.UpdateProfileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.validateRequest(w, &req) {
		return
	}

	user := s.currentUser(r)
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.CanBeContacted != nil {
		user.CanBeContacted = *req.CanBeContacted
	}
	if req.CanDataBeShared != nil {
		user.CanDataBeShared = *req.CanDataBeShared
	}

	if err := s.users.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrDuplicateUser) {
			httputil.WriteErrorMessage(w, http.StatusConflict, "email already taken")
			return
		}
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to update user")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}
	httputil.WriteSuccess(w, user)
}

// handleExportData returns everything stored about the caller as one
// portable document.
func (s *Server) handleExportData(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r)
	export, err := s.users.ExportUserData(r.Context(), user.ID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to export user data")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}
	s.recordEvent(r, &user.ID, audit.ActionDataExport, "user", strconv.FormatInt(user.ID, 10), audit.DecisionAllow)
	httputil.WriteSuccess(w, export)
}

// handleDeleteAccount permanently erases the caller's account and all data
// that hangs off it. Owned projects go with it through the cascades.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r)
	if err := s.users.DeleteUser(r.Context(), user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to erase account")
		httputil.WriteInternalError(w, errors.New("internal error"))
		return
	}

	s.recordEvent(r, nil, audit.ActionAccountErased, "user", strconv.FormatInt(user.ID, 10), audit.DecisionAllow)
	s.logger.WithField("user_id", user.ID).Info("account erased")
	httputil.WriteNoContent(w)
}

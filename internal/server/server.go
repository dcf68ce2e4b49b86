package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"shopadmin/internal/app"
	"shopadmin/internal/authz"
	"shopadmin/internal/session"
	"shopadmin/internal/util"
	"shopadmin/pkg/auth"
	"shopadmin/pkg/domain"
	"shopadmin/pkg/storage"
)

const defaultMaxUploadBytes = 32 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Tokens         *auth.TokenIssuer
	SessionTTL     time.Duration
	MaxUploadBytes int64
}

// Server exposes the dashboard's HTTP endpoints.
type Server struct {
	app        *app.App
	tokens     *auth.TokenIssuer
	sessionTTL time.Duration
	maxUpload  int64
	mux        *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:        cfg.App,
		tokens:     cfg.Tokens,
		sessionTTL: cfg.SessionTTL,
		maxUpload:  cfg.MaxUploadBytes,
		mux:        http.NewServeMux(),
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = auth.DefaultTokenTTL
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUploadBytes
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestLog(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/dashboard", s.handleDashboard)

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/me", s.withSession(s.handleMe))

	// entities
	s.mux.Handle("/api/categories", s.withSession(s.handleCategories))
	s.mux.Handle("/api/categories/", s.withSession(s.handleCategoryByID))
	s.mux.Handle("/api/products", s.withSession(s.handleProducts))
	s.mux.Handle("/api/products/", s.withSession(s.handleProductByID))
	s.mux.Handle("/api/users", s.withSession(s.handleUsers))
	s.mux.Handle("/api/users/", s.withSession(s.handleUserByID))

	// assets
	s.mux.Handle("/api/uploads", s.withSession(s.handleUploads))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDashboard gates the dashboard shell. Browsers without a live
// session are bounced to the login page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if session.FromRequest(r, s.tokens) == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionHandler receives the decoded session, which is nil for anonymous
// requests. Authorization happens in the app layer.
type sessionHandler func(http.ResponseWriter, *http.Request, *session.Session)

func (s *Server) withSession(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next(w, r, session.FromRequest(r, s.tokens))
	})
}

// auth handlers

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	session.SetCookie(w, token, s.sessionTTL)
	writeJSON(w, http.StatusOK, userResponse(user))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	session.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.Me(sess)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

// category handlers

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		categories, err := s.app.ListCategories(r.Context(), sess)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse(categories))
	case http.MethodPost:
		var req categoryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		category, err := s.app.CreateCategory(r.Context(), sess, req.Name)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "create", "category", category.ID)
		writeJSON(w, http.StatusCreated, category)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, ok := pathID(r.URL.Path, "/api/categories/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req categoryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.app.UpdateCategory(r.Context(), sess, id, req.Name); err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "update", "category", id)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.app.DeleteCategory(r.Context(), sess, id); err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "delete", "category", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// product handlers

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		products, err := s.app.ListProducts(r.Context(), sess)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse(products))
	case http.MethodPost:
		var req app.ProductInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		product, err := s.app.CreateProduct(r.Context(), sess, req)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "create", "product", product.ID)
		writeJSON(w, http.StatusCreated, product)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, ok := pathID(r.URL.Path, "/api/products/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		product, err := s.app.GetProduct(sess, id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPut:
		var req app.ProductInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.app.UpdateProduct(r.Context(), sess, id, req); err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "update", "product", id)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.app.DeleteProduct(r.Context(), sess, id); err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "delete", "product", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// user handlers

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.app.ListUsers(r.Context(), sess)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		items := make([]userPayload, 0, len(users))
		for _, u := range users {
			items = append(items, userResponse(u))
		}
		writeJSON(w, http.StatusOK, listResponse(items))
	case http.MethodPost:
		var req app.UserInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		user, err := s.app.CreateUser(r.Context(), sess, req)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "create", "user", user.ID)
		writeJSON(w, http.StatusCreated, userResponse(user))
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, ok := pathID(r.URL.Path, "/api/users/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var req userUpdateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.app.UpdateUser(r.Context(), sess, id, req.Name, req.Role); err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "update", "user", id)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.app.SoftDeleteUser(r.Context(), sess, id); err != nil {
			s.writeAppError(w, err)
			return
		}
		s.audit(sess, "delete", "user", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// upload handler

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	uploads := make([]storage.Upload, 0, len(headers))
	var open []multipart.File
	defer func() {
		for _, f := range open {
			_ = f.Close()
		}
	}()
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		open = append(open, f)
		uploads = append(uploads, storage.Upload{
			Filename:    h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Body:        f,
		})
	}

	result, err := s.app.UploadImages(r.Context(), sess, uploads, r.URL.Query().Get("folder"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.audit(sess, "upload", "asset", "")
	status := http.StatusCreated
	if len(result.Assets) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

// audit emits one structured line per accepted mutation.
func (s *Server) audit(sess *session.Session, action, entity, id string) {
	userID := ""
	if sess != nil {
		userID = sess.UserID
	}
	slog.Info("audit", "action", action, "entity", entity, "id", id, "user", userID)
}

func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, authz.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, storage.ErrInvalidType),
		errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEmailExists),
		errors.Is(err, app.ErrDuplicateSlug),
		errors.Is(err, app.ErrCategoryInUse),
		errors.Is(err, app.ErrSelfDeleteForbidden),
		errors.Is(err, app.ErrLastAdminProtected):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

type userUpdateRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// userPayload is the public view of an account. Password hashes never
// leave the process.
type userPayload struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func userResponse(u domain.User) userPayload {
	return userPayload{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		DeletedAt: u.DeletedAt,
		CreatedAt: u.CreatedAt,
	}
}

func listResponse[T any](items []T) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{
		"items": items,
		"count": len(items),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JeanneIrsaeva/library-tracker/internal/accounts"
	"github.com/JeanneIrsaeva/library-tracker/internal/library"
	"github.com/JeanneIrsaeva/library-tracker/internal/router"
	"github.com/JeanneIrsaeva/library-tracker/internal/server/middleware"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type api struct {
	logger     *slog.Logger
	accounts   *accounts.Service
	library    *library.Service
	transcript *store.Transcript
	chatURL    string
}

// newAPI builds the REST surface: accounts, the book catalog and chat history.
func newAPI(logger *slog.Logger, svc Services, auth *middleware.AuthMiddleware, corsOrigins []string, chatURL string) *gin.Engine {
	a := &api{
		logger:     logger.With(slog.String("component", "api")),
		accounts:   svc.Accounts,
		library:    svc.Library,
		transcript: svc.Transcript,
		chatURL:    chatURL,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.GinRequestMetadata())
	if len(corsOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// ----------------------------
	// Public Routes
	// ----------------------------

	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to your personal library!"})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "personal-library-api"})
	})
	engine.GET("/websocket-info", a.websocketInfo)

	authGroup := engine.Group("/auth")
	authGroup.POST("/register", a.register)
	authGroup.POST("/login", a.login)
	authGroup.POST("/refresh", a.refresh)
	authGroup.POST("/logout", a.logout)

	// ----------------------------
	// Protected Routes
	// ----------------------------

	books := engine.Group("/books")
	books.Use(middleware.GinRequireAuth(auth))
	books.GET("/", a.listBooks)
	books.POST("/", a.createBook)
	books.GET("/:id", a.getBook)
	books.PATCH("/:id", a.updateBook)
	books.PUT("/:id", a.updateBook)
	books.DELETE("/:id", a.deleteBook)

	chat := engine.Group("/chat")
	chat.Use(middleware.GinRequireAuth(auth))
	chat.GET("/messages", a.listMessages)
	chat.POST("/messages", a.createMessage)

	return engine
}

func abortWith(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func (a *api) websocketInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket_url": a.chatURL,
		"protocol":      "WebSocket",
		"purpose":       "Support chat",
		"features": []string{
			"JWT authentication",
			"User to administrator messaging",
			"Persistent message history",
			"New user notifications",
			"Typing indicators",
		},
	})
}

// --- Accounts ---

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         userResponse `json:"user"`
}

func newTokenResponse(res *accounts.Result) tokenResponse {
	return tokenResponse{
		AccessToken:  res.Tokens.Access,
		RefreshToken: res.Tokens.Refresh,
		TokenType:    "bearer",
		User:         userResponse{ID: res.User.ID, Email: res.User.Email, Role: res.User.Role},
	}
}

type registerRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

func (a *api) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid request")
		return
	}
	res, err := a.accounts.Register(c.Request.Context(), req.Email, req.Password, req.PasswordConfirm)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newTokenResponse(res))
	case errors.Is(err, store.ErrEmailTaken):
		abortWith(c, http.StatusBadRequest, "a user with this email already exists")
	case errors.Is(err, accounts.ErrInvalidEmail),
		errors.Is(err, accounts.ErrPasswordMismatch),
		errors.Is(err, accounts.ErrPasswordTooShort):
		abortWith(c, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("Registration failed", slog.Any("error", err))
		abortWith(c, http.StatusInternalServerError, "internal server error")
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *api) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid request")
		return
	}
	res, err := a.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			abortWith(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		a.logger.Error("Login failed", slog.Any("error", err))
		abortWith(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(res))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (a *api) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid request")
		return
	}
	res, err := a.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidRefresh) {
			abortWith(c, http.StatusUnauthorized, err.Error())
			return
		}
		a.logger.Error("Token refresh failed", slog.Any("error", err))
		abortWith(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(res))
}

func (a *api) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := a.accounts.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, accounts.ErrInvalidRefresh) {
			abortWith(c, http.StatusUnauthorized, err.Error())
			return
		}
		a.logger.Error("Logout failed", slog.Any("error", err))
		abortWith(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Books ---

// bookRequest accepts both JSON and form bodies. book_status is the form
// field name older clients use for status.
type bookRequest struct {
	Title          *string `json:"title" form:"title"`
	Author         *string `json:"author" form:"author"`
	Genre          *string `json:"genre" form:"genre"`
	Description    *string `json:"description" form:"description"`
	Rating         *int    `json:"rating" form:"rating"`
	FavoriteQuotes *string `json:"favorite_quotes" form:"favorite_quotes"`
	StartDate      *string `json:"start_date" form:"start_date"`
	EndDate        *string `json:"end_date" form:"end_date"`
	Status         *string `json:"status" form:"status"`
	BookStatus     *string `json:"-" form:"book_status"`
}

func (r *bookRequest) status() *string {
	if r.Status != nil {
		return r.Status
	}
	return r.BookStatus
}

type bookResponse struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"user_id"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	Genre          string  `json:"genre"`
	Description    *string `json:"description"`
	Rating         *int    `json:"rating"`
	FavoriteQuotes *string `json:"favorite_quotes"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Status         string  `json:"status"`
}

func newBookResponse(b *store.Book) bookResponse {
	return bookResponse{
		ID:             b.ID,
		UserID:         b.UserID,
		Title:          b.Title,
		Author:         b.Author,
		Genre:          b.Genre,
		Description:    b.Description,
		Rating:         b.Rating,
		FavoriteQuotes: b.FavoriteQuotes,
		StartDate:      formatDate(b.StartDate),
		EndDate:        formatDate(b.EndDate),
		Status:         string(b.Status),
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// parseDate treats a missing or blank value as "no date".
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*s))
	if err != nil {
		return nil, &library.ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return &t, nil
}

func claimsOf(c *gin.Context) *identity.Claims {
	claims, _ := middleware.ClaimsFrom(c)
	return claims
}

func bookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWith(c, http.StatusNotFound, "book not found")
		return 0, false
	}
	return id, true
}

func (a *api) bookError(c *gin.Context, err error) {
	var verr *library.ValidationError
	switch {
	case errors.As(err, &verr):
		abortWith(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, library.ErrNotFound):
		abortWith(c, http.StatusNotFound, "book not found")
	case errors.Is(err, library.ErrForbidden):
		abortWith(c, http.StatusForbidden, "access denied")
	default:
		a.logger.Error("Book request failed", slog.Any("error", err))
		abortWith(c, http.StatusInternalServerError, "internal server error")
	}
}

func (a *api) listBooks(c *gin.Context) {
	books, err := a.library.List(c.Request.Context(), claimsOf(c).UserID)
	if err != nil {
		a.bookError(c, err)
		return
	}
	out := make([]bookResponse, 0, len(books))
	for i := range books {
		out = append(out, newBookResponse(&books[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) getBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	book, err := a.library.Get(c.Request.Context(), id, claimsOf(c).UserID)
	if err != nil {
		a.bookError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookResponse(book))
}

func (a *api) createBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid request")
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		a.bookError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		a.bookError(c, err)
		return
	}

	in := library.BookInput{
		Title:          deref(req.Title),
		Author:         deref(req.Author),
		Genre:          deref(req.Genre),
		Description:    req.Description,
		Rating:         req.Rating,
		FavoriteQuotes: req.FavoriteQuotes,
		StartDate:      start,
		EndDate:        end,
		Status:         deref(req.status()),
	}
	book, err := a.library.Create(c.Request.Context(), claimsOf(c).UserID, in)
	if err != nil {
		a.bookError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newBookResponse(book))
}

func (a *api) updateBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid request")
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		a.bookError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		a.bookError(c, err)
		return
	}

	patch := library.BookPatch{
		Title:          req.Title,
		Author:         req.Author,
		Genre:          req.Genre,
		Description:    req.Description,
		Rating:         req.Rating,
		FavoriteQuotes: req.FavoriteQuotes,
		StartDate:      start,
		EndDate:        end,
		Status:         req.status(),
	}
	book, err := a.library.Update(c.Request.Context(), id, claimsOf(c).UserID, patch)
	if err != nil {
		a.bookError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookResponse(book))
}

func (a *api) deleteBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	if err := a.library.Delete(c.Request.Context(), id, claimsOf(c).UserID); err != nil {
		a.bookError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted"})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Chat history over HTTP ---

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		abortWith(c, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return n, true
}

func (a *api) listMessages(c *gin.Context) {
	skip, ok := queryInt(c, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}

	claims := claimsOf(c)
	var filter store.HistoryFilter
	if !claims.IsAdmin() {
		filter.SubjectID = &claims.UserID
	}
	msgs, err := a.transcript.List(c.Request.Context(), filter, skip, limit)
	if err != nil {
		a.logger.Error("Listing chat messages failed", slog.Any("error", err))
		abortWith(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, router.HistoryEntries(msgs))
}

type createMessageRequest struct {
	Message string `json:"message"`
}

// createMessage stores a message authored by the caller without relaying it.
func (a *api) createMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, "invalid request")
		return
	}
	body := strings.TrimSpace(req.Message)
	if body == "" {
		abortWith(c, http.StatusBadRequest, "message cannot be empty")
		return
	}

	claims := claimsOf(c)
	origin := store.OriginUser
	if claims.IsAdmin() {
		origin = store.OriginAdmin
	}
	msg, err := a.transcript.Append(c.Request.Context(), claims.UserID, body, origin)
	if err != nil {
		a.logger.Error("Saving chat message failed", slog.Any("error", err))
		abortWith(c, http.StatusInternalServerError, "internal server error")
		return
	}
	c.JSON(http.StatusOK, router.HistoryEntries([]store.ChatMessage{*msg})[0])
}

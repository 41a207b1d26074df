package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clipvault/internal/domain"
	"clipvault/internal/media"
	"clipvault/internal/repository"
	"clipvault/internal/service"
)

// Handler wires HTTP routes to the registration pipeline.
type Handler struct {
	registrations service.RegistrationService
	maxBodyBytes  int64
}

func NewHandler(registrations service.RegistrationService, maxBodyBytes int64) *Handler {
	return &Handler{
		registrations: registrations,
		maxBodyBytes:  maxBodyBytes,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	users := router.Group("/users")
	{
		users.POST("/register", h.register)
		users.GET("/:id", h.getUser)
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Envelope is the uniform response shape for every outcome.
type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// UserResponse is the public view of a created or fetched user. It never
// carries the credential hash.
type UserResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FullName      string `json:"fullname"`
	AvatarURL     string `json:"avatarUrl"`
	CoverImageURL string `json:"coverImageUrl,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
	}
}

func respondSuccess(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{
		Success: true,
		Data:    data,
		Message: message,
		Errors:  []string{},
	})
}

func respondFailure(c *gin.Context, status int, message string, errs []string) {
	if errs == nil {
		errs = []string{}
	}
	c.JSON(status, Envelope{
		Success: false,
		Data:    nil,
		Message: message,
		Errors:  errs,
	})
}

func (h *Handler) register(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	in := service.RegistrationInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		FullName: c.PostForm("fullname"),
		Password: c.PostForm("password"),
	}

	avatar, closeAvatar, err := formPayload(c, "avatar")
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "malformed multipart form", []string{"avatar"})
		return
	}
	defer closeAvatar()
	in.Avatar = avatar

	cover, closeCover, err := formPayload(c, "coverImage")
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "malformed multipart form", []string{"coverImage"})
		return
	}
	defer closeCover()
	in.CoverImage = cover

	user, err := h.registrations.Register(c.Request.Context(), in)
	if err != nil {
		h.writeRegisterFailure(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, userToResponse(user), "user registered successfully")
}

// writeRegisterFailure is the single place pipeline failures are classified
// into status codes and the uniform envelope.
func (h *Handler) writeRegisterFailure(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		errs := make([]string, len(verr.Fields))
		for i, f := range verr.Fields {
			errs[i] = f + " is missing or invalid"
		}
		respondFailure(c, http.StatusBadRequest, "validation failed", errs)
		return
	}

	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		errs := make([]string, len(conflict.Fields))
		for i, f := range conflict.Fields {
			errs[i] = f + " is already taken"
		}
		respondFailure(c, http.StatusConflict, "user already exists", errs)
		return
	}

	var stageErr *media.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Kind {
		case media.FailureUpload:
			respondFailure(c, http.StatusBadGateway, "media upload failed", []string{stageErr.Field + " upload failed"})
		default:
			// Local staging fault; details stay in the server log.
			respondFailure(c, http.StatusInternalServerError, "could not process uploaded media", []string{stageErr.Field})
		}
		return
	}

	respondFailure(c, http.StatusInternalServerError, "internal server error", nil)
}

func (h *Handler) getUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondFailure(c, http.StatusBadRequest, "invalid user id", []string{"id"})
		return
	}

	user, err := h.registrations.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondFailure(c, http.StatusNotFound, "user not found", []string{"id"})
			return
		}
		respondFailure(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}

	respondSuccess(c, http.StatusOK, userToResponse(user), "ok")
}

func formPayload(c *gin.Context, field string) (*media.Payload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return &media.Payload{
		Field:       field,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Reader:      f,
	}, func() { _ = f.Close() }, nil
}

package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xhujustin/billiards-analytics-v1.5/pkg/response"
	"github.com/xhujustin/billiards-analytics-v1.5/pkg/utils"
)

// Handler handles operator login.
type Handler struct {
	jwt          *JWTService
	username     string
	passwordHash string
	logger       *zap.Logger
}

// NewHandler creates an auth handler checking against the configured
// operator username and bcrypt password hash.
func NewHandler(jwt *JWTService, username, passwordHash string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jwt: jwt, username: username, passwordHash: passwordHash, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /auth/login and returns an operator token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password required")
		return
	}
	if req.Username != h.username || !utils.CheckPassword(req.Password, h.passwordHash) {
		h.logger.Warn("login failed", zap.String("username", req.Username))
		response.Unauthorized(c, "invalid credentials")
		return
	}
	token, err := h.jwt.Generate(req.Username)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, gin.H{"token": token, "role": RoleOperator})
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"repuestos-backoffice/database"
	"repuestos-backoffice/middleware"
	"repuestos-backoffice/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) Login(c *gin.Context) {
	var creds struct {
		Email      string `json:"email" binding:"required"`
		Password   string `json:"password" binding:"required"`
		RememberMe bool   `json:"rememberMe"`
	}
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos"})
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	expiration := 24 * time.Hour
	if creds.RememberMe {
		expiration = 30 * 24 * time.Hour
	}

	user, err := h.findUserByEmail(ctx, creds.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciales inválidas"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciales inválidas"})
		return
	}

	token, err := h.auth.IssueToken(user.ID, expiration)
	if err != nil {
		middleware.Logger(c, h.log).Error("token signing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo iniciar sesión"})
		return
	}

	h.auth.SetCookie(c, token, expiration)
	c.JSON(http.StatusOK, gin.H{"message": "Logueado correctamente", "token": token})
}

func (h *Handler) Logout(c *gin.Context) {
	h.auth.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Sesión cerrada correctamente"})
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	user, err := h.findUser(ctx, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Usuario no encontrado"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "user": user})
}

// AdminCreateUser registers an operator. It is guarded by the
// X-Admin-Secret header instead of a session.
func (h *Handler) AdminCreateUser(c *gin.Context) {
	if h.adminSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration: ADMIN_SECRET_KEY not set"})
		return
	}
	if c.GetHeader("X-Admin-Secret") != h.adminSecret {
		c.JSON(http.StatusForbidden, gin.H{"error": "Acceso denegado"})
		return
	}

	var req struct {
		Email      string `json:"email" binding:"required"`
		Password   string `json:"password" binding:"required"`
		Username   string `json:"username" binding:"required"`
		EmployeeID string `json:"employeeId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, usuario y contraseña son requeridos"})
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.findUserByEmail(ctx, email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "El email ya está registrado"})
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		h.respondError(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al procesar contraseña"})
		return
	}

	user := models.User{
		ID:         h.store.NewID(),
		Email:      email,
		Password:   string(hash),
		Username:   req.Username,
		EmployeeID: req.EmployeeID,
	}
	if err := h.store.Set(ctx, database.Doc(models.CollUsers, user.ID), user); err != nil {
		middleware.Logger(c, h.log).Error("user registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al registrar usuario"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Usuario creado exitosamente",
		"userId":  user.ID,
	})
}

func (h *Handler) findUser(ctx context.Context, id string) (*models.User, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, database.ErrNotFound
	}
	snap, err := h.store.Get(ctx, database.Doc(models.CollUsers, id))
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := snap.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *Handler) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	snaps, err := h.store.Query(ctx, database.Query{
		Collection: models.CollUsers,
		Where:      []database.Filter{{Field: "email", Value: strings.ToLower(strings.TrimSpace(email))}},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, database.ErrNotFound
	}
	var user models.User
	if err := snaps[0].Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

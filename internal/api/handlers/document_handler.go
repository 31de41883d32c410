package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"document-service/internal/domain"
	"document-service/internal/services"
	"document-service/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DocumentService is what the REST API needs from the document layer.
type DocumentService interface {
	CreateDocument(ctx context.Context, title string, ownerID int64) (*domain.Document, error)
	EditDocument(ctx context.Context, documentID, userID int64, req services.EditRequest) (*domain.Document, error)
	GetDocument(ctx context.Context, documentID int64) (*domain.Document, error)
	GetDocumentChanges(ctx context.Context, documentID int64) ([]*domain.DocumentChange, error)
	GetUserDocuments(ctx context.Context, userID int64) ([]*domain.Document, error)
	GetSharedDocuments(ctx context.Context, userID int64) ([]*domain.Document, error)
	InviteUserByEmail(ctx context.Context, documentID int64, email string, invitedBy *int64) (*domain.Document, error)
}

// PresenceReader exposes who is currently viewing a document.
type PresenceReader interface {
	Presence(documentID int64) []int64
}

type DocumentHandler struct {
	documents DocumentService
	presence  PresenceReader
	log       logger.Logger
}

func NewDocumentHandler(documents DocumentService, presence PresenceReader, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		presence:  presence,
		log:       log,
	}
}

// Register mounts the document routes on g (normally /api/documents).
func (h *DocumentHandler) Register(g *echo.Group) {
	g.POST("", h.CreateDocument)
	g.GET("/user/:userId", h.GetUserDocuments)
	g.GET("/shared/:userId", h.GetSharedDocuments)
	g.GET("/:documentId", h.GetDocument)
	g.PUT("/:documentId/edit", h.EditDocument)
	g.GET("/:documentId/changes", h.GetDocumentChanges)
	g.GET("/:documentId/presence", h.GetPresence)
	g.POST("/:documentId/invite", h.InviteUser)
}

func (h *DocumentHandler) CreateDocument(c echo.Context) error {
	userID, err := parseID(c.QueryParam("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("userId is required"))
	}

	doc, err := h.documents.CreateDocument(c.Request().Context(), c.QueryParam("title"), userID)
	if err != nil {
		return h.fail(c, "Failed to create document", err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) EditDocument(c echo.Context) error {
	documentID, err := parseID(c.Param("documentId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid document id"))
	}
	userID, err := parseID(c.QueryParam("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("userId is required"))
	}

	var req services.EditRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}

	doc, err := h.documents.EditDocument(c.Request().Context(), documentID, userID, req)
	if err != nil {
		return h.fail(c, "Failed to edit document", err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) GetDocument(c echo.Context) error {
	documentID, err := parseID(c.Param("documentId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid document id"))
	}

	doc, err := h.documents.GetDocument(c.Request().Context(), documentID)
	if err != nil {
		return h.fail(c, "Failed to load document", err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) GetDocumentChanges(c echo.Context) error {
	documentID, err := parseID(c.Param("documentId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid document id"))
	}

	changes, err := h.documents.GetDocumentChanges(c.Request().Context(), documentID)
	if err != nil {
		return h.fail(c, "Failed to load changes", err)
	}
	return c.JSON(http.StatusOK, changes)
}

// GetPresence reports the users this instance currently sees on the document.
func (h *DocumentHandler) GetPresence(c echo.Context) error {
	documentID, err := parseID(c.Param("documentId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid document id"))
	}
	return c.JSON(http.StatusOK, h.presence.Presence(documentID))
}

func (h *DocumentHandler) GetUserDocuments(c echo.Context) error {
	userID, err := parseID(c.Param("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid user id"))
	}

	docs, err := h.documents.GetUserDocuments(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, "Failed to list documents", err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) GetSharedDocuments(c echo.Context) error {
	userID, err := parseID(c.Param("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid user id"))
	}

	docs, err := h.documents.GetSharedDocuments(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, "Failed to list shared documents", err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) InviteUser(c echo.Context) error {
	documentID, err := parseID(c.Param("documentId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid document id"))
	}
	inviterID, err := optionalID(c.QueryParam("inviterId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid inviterId"))
	}

	doc, err := h.documents.InviteUserByEmail(c.Request().Context(), documentID, c.QueryParam("email"), inviterID)
	if err != nil {
		return h.fail(c, "Failed to invite user", err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) fail(c echo.Context, msg string, err error) error {
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return c.JSON(http.StatusNotFound, errorBody("Document not found"))
	case errors.Is(err, domain.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, errorBody("User not found"))
	case errors.Is(err, domain.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}
	h.log.Error(msg, "error", err, "path", c.Path())
	return c.JSON(http.StatusInternalServerError, errorBody(msg))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// optionalID returns nil for an empty parameter.
func optionalID(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

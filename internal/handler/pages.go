package handler

import (
	"log/slog"
	"net/http"
)

// PageHandler serves the public marketing pages.
type PageHandler struct {
	templates *Templates
	logger    *slog.Logger
}

func NewPageHandler(t *Templates, logger *slog.Logger) *PageHandler {
	return &PageHandler{templates: t, logger: logger}
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.templates.Render(w, http.StatusOK, "home.html", PageData{})
}

func (h *PageHandler) About(w http.ResponseWriter, r *http.Request) {
	h.templates.Render(w, http.StatusOK, "about.html", PageData{Title: "About"})
}

func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.templates.Render(w, http.StatusNotFound, "error.html", PageData{Title: "Page not found"})
}

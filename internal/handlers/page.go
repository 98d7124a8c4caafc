package handlers

import (
	"embed"
	"html/template"
	"log"
	"net/http"

	"gemini-chat/internal/models"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTmpl = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"speaker": func(role models.Role) string {
		if role == models.RoleUser {
			return "You"
		}
		return "Gemini"
	},
}).ParseFS(templateFS, "templates/index.html"))

type PageHandler struct {
	chat chatController
}

func NewPageHandler(c chatController) *PageHandler {
	return &PageHandler{chat: c}
}

type pageData struct {
	State models.ChatSnapshot
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, pageData{State: h.chat.Snapshot()}); err != nil {
		log.Printf("Failed to render chat page: %v", err)
	}
}

package http

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ekisa-team/anubad/internal/config"
	"github.com/ekisa-team/anubad/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	emptyInputMessage = "Please enter some text to translate."
	successMessage    = "Translation:"
	loadFailedMessage = "Failed to load the translator model. Please check if the model files are present in the 'translator' directory."
)

// Message levels rendered by the page.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

type message struct {
	Level  string
	Text   string
	Detail string
}

type page struct {
	UI          config.UIConfig
	Message     *message
	Input       string
	Translation string
	Ready       bool
}

// UIHandler serves the browser page.
type UIHandler struct {
	service *service.Translator
}

// NewUIHandler registers the page routes on router.
func NewUIHandler(router *gin.Engine, service *service.Translator) *UIHandler {
	h := &UIHandler{service: service}

	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	router.GET("/", h.show)
	router.POST("/", h.translate)

	return h
}

func (h *UIHandler) newPage() *page {
	p := &page{UI: h.service.UI(), Ready: true}

	if err := h.service.LoadError(""); err != nil {
		p.Ready = false
		p.Message = &message{
			Level:  LevelError,
			Text:   loadFailedMessage,
			Detail: "Error loading model: " + err.Error(),
		}
	}

	return p
}

func (h *UIHandler) show(c *gin.Context) {
	p := h.newPage()
	c.HTML(http.StatusOK, "index.html", p)
}

func (h *UIHandler) translate(c *gin.Context) {
	p := h.newPage()
	if !p.Ready {
		c.HTML(http.StatusServiceUnavailable, "index.html", p)
		return
	}

	p.Input = c.PostForm("text")

	result, err := h.service.Translate(c.Request.Context(), "", p.Input)
	if err != nil {
		status, msg := pageError(err)
		p.Message = msg
		c.HTML(status, "index.html", p)
		return
	}

	p.Message = &message{Level: LevelSuccess, Text: successMessage}
	p.Translation = result.Text
	c.HTML(http.StatusOK, "index.html", p)
}

func pageError(err error) (int, *message) {
	if errors.Is(err, service.ErrEmptyInput) {
		return http.StatusOK, &message{Level: LevelWarning, Text: emptyInputMessage}
	}
	if errors.Is(err, service.ErrInputTooLong) || errors.Is(err, service.ErrInvalidUTF8) {
		return http.StatusBadRequest, &message{Level: LevelWarning, Text: err.Error()}
	}

	cause := err
	var ie *service.InferenceError
	if errors.As(err, &ie) {
		cause = ie.Err
	}

	return http.StatusOK, &message{Level: LevelError, Text: "Translation error: " + cause.Error()}
}

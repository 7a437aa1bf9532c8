package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Protocol-Lattice/design-team/src/helpers"
	"github.com/Protocol-Lattice/design-team/src/staging"
	"github.com/Protocol-Lattice/design-team/src/team"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

type AnalysisHandler struct {
	registry  *team.Registry
	maxUpload int64
}

func NewAnalysisHandler(registry *team.Registry, maxUpload int64) *AnalysisHandler {
	return &AnalysisHandler{registry: registry, maxUpload: maxUpload}
}

type OptionsResponse struct {
	AnalysisTypes []string `json:"analysis_types"`
	FocusElements []string `json:"focus_elements"`
	DefaultTypes  []string `json:"default_types"`
}

func (h *AnalysisHandler) Options(c *gin.Context) {
	types := make([]string, len(team.AnalysisTypes))
	for i, t := range team.AnalysisTypes {
		types[i] = string(t)
	}
	c.JSON(http.StatusOK, OptionsResponse{
		AnalysisTypes: types,
		FocusElements: team.FocusElements,
		DefaultTypes:  []string{string(team.VisualDesign)},
	})
}

type CreateSessionRequest struct {
	APIKey string `json:"api_key"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateSession opens a session for the key. When the request names an
// existing session, that session is rebuilt if the key changed.
func (h *AnalysisHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if id := c.GetHeader(SessionHeader); id != "" {
		if _, ok := h.registry.Get(id); ok {
			if _, err := h.registry.Rebind(c.Request.Context(), id, req.APIKey); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, CreateSessionResponse{SessionID: id})
			return
		}
	}

	id, _, err := h.registry.Open(c.Request.Context(), req.APIKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header(SessionHeader, id)
	c.JSON(http.StatusOK, CreateSessionResponse{SessionID: id})
}

func (h *AnalysisHandler) DeleteSession(c *gin.Context) {
	if id := c.GetHeader(SessionHeader); id != "" {
		h.registry.Remove(id)
	}
	c.Status(http.StatusNoContent)
}

type ResultResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
	State  string `json:"state"`
}

type AnalyzeResponse struct {
	Results  []ResultResponse `json:"results"`
	Warnings []string         `json:"warnings"`
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	sess, ok := h.registry.Get(c.GetHeader(SessionHeader))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Please enter your API key to proceed"})
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	designs, closeDesigns := openUploads(form.File["designs"])
	defer closeDesigns()
	competitors, closeCompetitors := openUploads(form.File["competitors"])
	defer closeCompetitors()

	sel := team.Selection{
		Designs:       designs,
		Competitors:   competitors,
		Types:         helpers.ParseCSVValues(form.Value["analysis_types"]),
		FocusElements: helpers.ParseCSVValues(form.Value["focus_elements"]),
		Context:       strings.Join(form.Value["context"], "\n"),
	}

	report, err := sess.Run(c.Request.Context(), sel)
	resp := AnalyzeResponse{Results: []ResultResponse{}, Warnings: report.Warnings}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	switch {
	case team.IsWarning(err):
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	case errors.Is(err, team.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, res := range report.Results {
		rr := ResultResponse{
			Type:   string(res.Type),
			Title:  res.Title,
			Output: res.Output,
			State:  res.State.String(),
		}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, rr)
	}
	c.JSON(http.StatusOK, resp)
}

func openUploads(headers []*multipart.FileHeader) ([]staging.Upload, func()) {
	uploads := make([]staging.Upload, 0, len(headers))
	var closers []io.Closer
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			klog.Warningf("open upload %s: %v", fh.Filename, err)
			uploads = append(uploads, staging.Unreadable(fh.Filename, err))
			continue
		}
		closers = append(closers, f)
		uploads = append(uploads, staging.Upload{Name: fh.Filename, Content: f})
	}
	return uploads, func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}
}

package server

import (
	"net/http"

	"github.com/Protocol-Lattice/design-team/src/team"
	"github.com/gin-gonic/gin"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
	utcphttp "github.com/universal-tool-calling-protocol/go-utcp/src/providers/http"
	utcptools "github.com/universal-tool-calling-protocol/go-utcp/src/tools"
)

const utcpManualVersion = "1.0"

// ManualResponse is the UTCP manual listing a session's analysis tools.
type ManualResponse struct {
	Version string           `json:"version"`
	Name    string           `json:"name"`
	Tools   []utcptools.Tool `json:"tools"`
}

// UTCPManual describes the caller's session as UTCP tools. Each tool points
// at its own call endpoint and carries the session header.
func (h *AnalysisHandler) UTCPManual(c *gin.Context) {
	id := c.GetHeader(SessionHeader)
	sess, ok := h.registry.Get(id)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Please enter your API key to proceed"})
		return
	}

	root := baseURL(c.Request)
	tools := sess.UTCPTools(func(name string) base.Provider {
		return &utcphttp.HttpProvider{
			BaseProvider: base.BaseProvider{Name: team.UTCPProviderName, ProviderType: base.ProviderHTTP},
			HTTPMethod:   http.MethodPost,
			URL:          root + "/api/utcp/" + name,
			ContentType:  "application/json",
			Headers:      map[string]string{SessionHeader: id},
		}
	})
	c.JSON(http.StatusOK, ManualResponse{Version: utcpManualVersion, Name: team.UTCPProviderName, Tools: tools})
}

// UTCPCall runs one analysis tool. Inputs come from the JSON body, or from
// the query string when the client sent no body.
func (h *AnalysisHandler) UTCPCall(c *gin.Context) {
	sess, ok := h.registry.Get(c.GetHeader(SessionHeader))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Please enter your API key to proceed"})
		return
	}
	tool, ok := sess.UTCPTool(c.Param("tool"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool " + c.Param("tool")})
		return
	}

	inputs := map[string]interface{}{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&inputs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		for k, v := range c.Request.URL.Query() {
			if len(v) > 0 {
				inputs[k] = v[0]
			}
		}
	}

	out, err := tool.Handler(map[string]interface{}{team.UTCPContextKey: c.Request.Context()}, inputs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

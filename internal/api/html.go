package api

import (
	"html/template"
	"net/http"

	"github.com/nugget/airspace-copilot/internal/pipeline"
)

var answerPage = template.Must(template.New("answer").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Airspace Copilot</title></head>
<body>
<section class="traveler"><h1>Traveler reply</h1><p>{{.Traveler}}</p></section>
<section class="ops">{{.Ops}}</section>
</body>
</html>
`))

// writeHTML renders a result with the ops report converted from
// Markdown. The traveler reply is escaped as plain text.
func (s *Server) writeHTML(w http.ResponseWriter, result *pipeline.Result) {
	ops, err := pipeline.RenderHTML(result.OpsReport)
	if err != nil {
		s.logger.Error("render ops report", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := answerPage.Execute(w, struct {
		Traveler string
		Ops      template.HTML
	}{result.TravelerResponse, template.HTML(ops)}); err != nil {
		s.logger.Debug("failed to write HTML response", "error", err)
	}
}

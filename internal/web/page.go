package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"todaycal/internal/agenda"
	appLog "todaycal/internal/log"
)

//go:embed templates/agenda.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/agenda.html.tmpl"))

// DefaultReloadInterval matches the default refresh schedule.
const DefaultReloadInterval = 5 * time.Minute

// loadingReloadSeconds retries soon while the first refresh is running.
const loadingReloadSeconds = 5

type pageData struct {
	Lang          string
	Title         string
	ReloadSeconds int

	// Exactly one of Loading, Error or View is meaningful.
	Loading bool
	Message string
	Error   string
	View    agenda.View
	Updated string
}

// handlePage renders the agenda as HTML. The root element carries
// data-ready="true" once it shows either events or an error, which is what
// the snapshot capture waits for.
func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	st := s.agenda.State()
	f := s.formatter

	data := pageData{
		Lang:          f.Tag().String(),
		Title:         f.Text(agenda.MsgTodayHeading),
		ReloadSeconds: reloadSeconds(s.reload),
	}
	switch {
	case st.Loading:
		data.Loading = true
		data.Message = f.Text(agenda.MsgLoading)
		data.ReloadSeconds = loadingReloadSeconds
	case st.Err != nil:
		data.Error = f.Text(agenda.MsgErrorPrefix, f.Text(agenda.MsgFetchFailed))
	default:
		data.View = agenda.Build(st.Events, s.now(), f)
		data.Updated = f.Text(agenda.MsgUpdatedAt, f.Clock(st.UpdatedAt))
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		appLog.Error("agenda page render failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func reloadSeconds(d time.Duration) int {
	if secs := int(d.Round(time.Second) / time.Second); secs > 0 {
		return secs
	}
	return 1
}

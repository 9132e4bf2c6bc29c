package watchlist

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/ghutil"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// templFS contains the web pages.
//
//go:embed pages/templates/*
var templFS embed.FS

var templFuncs = template.FuncMap{
	"issueURL": func(owner, repo string, nr int) string {
		return ghutil.IssueRef{Owner: owner, Repo: repo, Number: nr}.URL()
	},
}

// HTTPService serves a page listing the content of the watch list.
type HTTPService struct {
	store     *Store
	templates *template.Template
	logger    *zap.Logger
}

// httpListData is used as template data when rendering the list page.
type httpListData struct {
	Repositories []*Repository
	IssueCount   int

	// CreatedAt is the time when this datastructure was created.
	CreatedAt time.Time
}

func NewHTTPService(store *Store) *HTTPService {
	return &HTTPService{
		store: store,
		templates: template.Must(
			template.New("").
				Funcs(templFuncs).
				ParseFS(templFS, "pages/templates/*"),
		),
		logger: store.logger.Named("http_service"),
	}
}

func (h *HTTPService) RegisterHandlers(router chi.Router, endpoint string) {
	router.Get(endpoint, h.HandlerListFunc)
}

func (h *HTTPService) HandlerListFunc(respWr http.ResponseWriter, req *http.Request) {
	repos, err := h.store.AllRepositories(req.Context())
	if err != nil {
		h.logger.Warn("retrieving watch list failed",
			logfields.Event("watchlist_http_list_failed"),
			zap.Error(err),
		)
		http.Error(respWr, err.Error(), http.StatusInternalServerError)
		return
	}

	data := httpListData{
		Repositories: repos,
		CreatedAt:    time.Now(),
	}

	for _, r := range repos {
		data.IssueCount += len(r.IssueNumbers)
	}

	err = h.templates.ExecuteTemplate(respWr, "list.html.tmpl", &data)
	if err != nil {
		h.logger.Info("applying template and sending back result failed",
			logfields.Event("watchlist_http_template_failed"),
			zap.Error(err),
		)
		http.Error(respWr, err.Error(), http.StatusInternalServerError)
		return
	}
}

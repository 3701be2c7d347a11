package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"flag"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/JamesSweetJones/AntibodyChainChecker/internal/report"
	"github.com/JamesSweetJones/AntibodyChainChecker/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"verdictClass": func(ok bool) string {
		if ok {
			return "normal"
		}
		return "irregular"
	},
	"pathEscape": url.PathEscape,
}).ParseFS(templateFS, "templates/*.html"))

// PairsPage is used to render the base page and to carry query state
type PairsPage struct {
	Report  *report.Report
	Pairs   []report.Pair
	Query   string
	Verdict string
	Sort    string
}

// statusResponseWriter captures status and bytes written for logging
type statusResponseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// loggingMiddleware logs each request with method, path, status, size and duration
func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w}
		next.ServeHTTP(srw, r)
		if srw.status == 0 {
			srw.status = http.StatusOK
		}
		logger.Info("request", "remote", r.RemoteAddr, "method", r.Method, "uri", r.URL.RequestURI(),
			"status", srw.status, "bytes", srw.written, "duration", time.Since(start))
	})
}

type server struct {
	reportPath string
	store      *store.Store
	logger     *log.Logger
}

// loadReport reads the report file fresh on every request so a new screening
// run is picked up without a restart.
func (s *server) loadReport() (*report.Report, error) {
	return report.Read(s.reportPath)
}

// filterPairs applies the query, verdict and sort parameters of the pair list.
func filterPairs(pairs []report.Pair, q, verdict, sortMode string) []report.Pair {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]report.Pair, 0, len(pairs))
	for _, p := range pairs {
		switch verdict {
		case "normal":
			if !p.Accepted {
				continue
			}
		case "irregular":
			if p.Accepted {
				continue
			}
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Key), q) &&
			!strings.Contains(strings.ToLower(p.LightID), q) &&
			!strings.Contains(strings.ToLower(p.HeavyID), q) &&
			!strings.Contains(strings.ToLower(p.Loop), q) {
			continue
		}
		out = append(out, p)
	}

	switch sortMode {
	case "loop":
		sort.SliceStable(out, func(i, j int) bool { return len(out[i].Loop) > len(out[j].Loop) })
	case "key":
		sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Key) < strings.ToLower(out[j].Key) })
	}
	return out
}

func (s *server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	rep, err := s.loadReport()
	if err != nil {
		s.logger.Warn("failed to read report for index", "path", s.reportPath, "err", err)
		rep = &report.Report{}
	}
	q := r.URL.Query()
	page := PairsPage{
		Report:  rep,
		Pairs:   filterPairs(rep.Pairs, q.Get("q"), q.Get("verdict"), q.Get("sort")),
		Query:   q.Get("q"),
		Verdict: q.Get("verdict"),
		Sort:    q.Get("sort"),
	}
	if err := templates.ExecuteTemplate(w, "base.html", page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *server) pairsHandler(w http.ResponseWriter, r *http.Request) {
	rep, err := s.loadReport()
	if err != nil {
		http.Error(w, "failed to read report", http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	pairs := filterPairs(rep.Pairs, q.Get("q"), q.Get("verdict"), q.Get("sort"))
	// render fragment (send only the slice)
	if err := templates.ExecuteTemplate(w, "pairs.html", pairs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *server) findPair(w http.ResponseWriter, r *http.Request) (report.Pair, bool) {
	key := r.PathValue("key")
	if key == "" {
		http.Error(w, "missing pair key", http.StatusBadRequest)
		return report.Pair{}, false
	}
	rep, err := s.loadReport()
	if err != nil {
		http.Error(w, "failed to read report", http.StatusInternalServerError)
		return report.Pair{}, false
	}
	p, ok := rep.Find(key)
	if !ok {
		http.Error(w, "pair not found", http.StatusNotFound)
		return report.Pair{}, false
	}
	return p, true
}

func (s *server) pairHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.findPair(w, r)
	if !ok {
		return
	}
	// HTMX requests get only the detail fragment
	name := "pair_page.html"
	if r.Header.Get("HX-Request") == "true" || r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		name = "detail.html"
	}
	if err := templates.ExecuteTemplate(w, name, p); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *server) apiPairHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.findPair(w, r)
	if !ok {
		return
	}
	writeJSON(w, p)
}

func (s *server) apiRunsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no run database configured", http.StatusNotFound)
		return
	}
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *server) apiRunPairsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no run database configured", http.StatusNotFound)
		return
	}
	id := r.PathValue("id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	pairs, err := s.store.Pairs(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	if pairs == nil {
		pairs = []report.Pair{}
	}
	writeJSON(w, pairs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.indexHandler)
	mux.HandleFunc("GET /pairs", s.pairsHandler)
	mux.HandleFunc("GET /pair/{key}", s.pairHandler)
	mux.HandleFunc("GET /api/pair/{key}", s.apiPairHandler)
	mux.HandleFunc("GET /api/runs", s.apiRunsHandler)
	mux.HandleFunc("GET /api/runs/{id}/pairs", s.apiRunPairsHandler)
	return loggingMiddleware(s.logger, mux)
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	reportPath := flag.String("report", "report.json", "JSON report written by abscreen screen --report")
	dbPath := flag.String("db", "", "SQLite run database written by abscreen screen --db (optional)")
	logFile := flag.String("log", "", "path to write access logs (optional). If empty, logs go to stdout only")
	flag.Parse()

	var out io.Writer = os.Stdout
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatal("failed to open log file", "path", *logFile, "err", err)
		}
		defer f.Close()
		out = io.MultiWriter(os.Stdout, f)
	}
	logger := log.NewWithOptions(out, log.Options{ReportTimestamp: true, Prefix: "abscreen-web"})

	s := &server{reportPath: *reportPath, logger: logger}
	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			logger.Fatal("failed to open run database", "path", *dbPath, "err", err)
		}
		defer st.Close()
		s.store = st
	}

	srv := &http.Server{Addr: *addr, Handler: s.routes(), ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logger.Info("loaded viewer", "report", *reportPath, "db", *dbPath)
	if err := serve(ctx, srv, logger); err != nil {
		logger.Error("server error", "err", err)
	}
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *log.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving report viewer", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

package ember

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ShayCichocki/hearth/pkg/models"
)

// Server is the HTTP surface of one Ember worker process.
type Server struct {
	worker     string
	credential string
	state      *ExecState
	command    CommandBuilder
}

// CommandBuilder turns an accepted execute request into the shell command
// launched inside the job session.
type CommandBuilder func(req ExecuteRequest) string

// NewServer wraps the execution state in an HTTP handler. credential is
// the bearer token required on every endpoint except /health.
func NewServer(worker, credential string, state *ExecState, command CommandBuilder) *Server {
	if command == nil {
		command = DefaultCommand
	}
	return &Server{
		worker:     worker,
		credential: credential,
		state:      state,
		command:    command,
	}
}

// Router builds the chi router for this worker.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/execute", s.handleExecute)
		r.Get("/tasks/active", s.handleActiveTasks)
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.credential)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing credential")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, _, err := s.state.Active(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	count := 0
	if active != nil {
		count = 1
	}
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:          "ok",
		ActiveTaskCount: count,
		UptimeSeconds:   int64(s.state.Uptime().Seconds()),
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	active, err := s.state.Submit(r.Context(), SubmitRequest{
		TaskID:  req.TaskID,
		Subject: req.Subject,
		WorkDir: req.WorkingDir,
		Command: s.command(req),
	})
	if err != nil {
		var busy *BusyError
		if errors.As(err, &busy) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":     busy.Error(),
				"sessionId": busy.SessionID,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{SessionID: active.SessionID})
}

func (s *Server) handleActiveTasks(w http.ResponseWriter, r *http.Request) {
	active, orphaned, err := s.state.Active(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ActiveTasksResponse{Active: active, Orphaned: orphaned})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// DefaultCommand builds the claude invocation for a delegated job. The
// tracker callback settings travel as environment variables so the session
// can report status changes without re-reading local config.
func DefaultCommand(req ExecuteRequest) string {
	var b strings.Builder
	if req.TrackerCallbackAddress != "" {
		fmt.Fprintf(&b, "HEARTH_TRACKER_ADDRESS=%s ", shellQuote(req.TrackerCallbackAddress))
	}
	if req.TrackerCallbackCredential != "" {
		fmt.Fprintf(&b, "HEARTH_TRACKER_TOKEN=%s ", shellQuote(req.TrackerCallbackCredential))
	}
	if req.TaskID != nil {
		fmt.Fprintf(&b, "HEARTH_TASK_ID=%d ", *req.TaskID)
	}
	if req.SenderName != "" {
		fmt.Fprintf(&b, "HEARTH_SENDER=%s ", shellQuote(req.SenderName))
	}
	if req.TargetBranch != "" {
		fmt.Fprintf(&b, "HEARTH_TARGET_BRANCH=%s ", shellQuote(req.TargetBranch))
	}

	b.WriteString("claude --dangerously-skip-permissions")
	if req.TurnBudget > 0 {
		fmt.Fprintf(&b, " --max-turns %d", req.TurnBudget)
	}
	fmt.Fprintf(&b, " -p %s", shellQuote(req.Prompt))
	return b.String()
}

// shellQuote wraps s in single quotes, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Package dashboard implements the web control surface for one Runner: a
// single-page HTML dashboard, a JSON status endpoint, a stop control
// endpoint, and a server-sent-events stream of live stats. There is no start
// endpoint: the run begins when the process starts, with the scenario and
// parameters chosen at launch.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/jihwankim/loadsmith/pkg/reporting"
	"github.com/jihwankim/loadsmith/pkg/runner"
)

// Server serves the dashboard HTTP surface for a single Runner.
type Server struct {
	addr   string
	r      *runner.Runner
	logger *reporting.Logger

	scenario  string
	startTime time.Time
}

// New builds a Server bound to addr (e.g. ":8089") that reports on r.
func New(addr string, r *runner.Runner, scenario string, logger *reporting.Logger) *Server {
	return &Server{addr: addr, r: r, logger: logger, scenario: scenario, startTime: time.Now()}
}

// Handler returns the dashboard's http.Handler, for tests and for embedding
// into a larger mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/stop", s.handleStop)
	return mux
}

// ListenAndServe starts the HTTP server and blocks until goCtx is
// cancelled or the server errors.
func (s *Server) ListenAndServe(goCtx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-goCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) liveState() reporting.LiveState {
	snap := s.r.Stats().Summary()
	return reporting.LiveState{
		RunID:       s.r.RunID(),
		Scenario:    s.scenario,
		State:       string(s.r.State()),
		StartTime:   s.startTime,
		Elapsed:     time.Since(s.startTime).Seconds(),
		ActiveUsers: s.r.ActiveUsers(),
		TargetPool:  s.r.TargetPool(),
		Endpoints:   reporting.EndpointSummaries(snap),
	}
}

func (s *Server) dashboardStatus() reporting.DashboardStatus {
	load := s.r.Config().Load
	return reporting.DashboardStatus{
		State:     string(s.r.State()),
		Scenarios: s.r.ScenarioNames(),
		Config: reporting.DashboardConfigInfo{
			BaseURL:   load.BaseURL,
			Users:     load.Users,
			SpawnRate: load.SpawnRate,
			Workers:   load.Workers,
		},
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.dashboardStatus()); err != nil {
		s.logger.Error("failed to encode status", "error", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			data, err := json.Marshal(s.liveState())
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleStop(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state := s.r.State()
	if state == runner.StatePending || state == runner.StateStopped {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "run is not active"})
		return
	}
	s.r.Stop()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"state": "stopping"})
}

var indexTemplate = template.Must(template.New("dashboard").Parse(indexHTML))

func (s *Server) handleIndex(w http.ResponseWriter, req *http.Request) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, struct{ Scenario string }{Scenario: s.scenario}); err != nil {
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>loadsmith</title>
  <style>
    body { font-family: -apple-system, sans-serif; margin: 2rem; color: #1a1a1a; }
    #stats { display: flex; gap: 2rem; margin: 1rem 0; }
    .stat { background: #f6f8fa; border: 1px solid #d0d7de; border-radius: 6px; padding: 0.75rem 1.25rem; }
    .stat .value { font-size: 1.6rem; font-weight: 600; }
    .stat .label { color: #555; font-size: 0.85rem; }
    table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
    th, td { border: 1px solid #d0d7de; padding: 0.4rem 0.6rem; text-align: right; }
    th:first-child, td:first-child { text-align: left; }
    button { padding: 0.4rem 1rem; }
  </style>
</head>
<body>
  <h1 id="scenario">loadsmith — {{.Scenario}}</h1>
  <button onclick="stop()">Stop run</button>
  <div id="stats"></div>
  <table id="endpoints">
    <thead><tr><th>endpoint</th><th>count</th><th>failures</th><th>p50</th><th>p95</th><th>p99</th></tr></thead>
    <tbody></tbody>
  </table>
  <script>
    function stop() { fetch('/api/stop', {method: 'POST'}); }
    const es = new EventSource('/api/stream');
    es.onmessage = (ev) => {
      const state = JSON.parse(ev.data);
      document.getElementById('scenario').textContent = 'loadsmith — ' + state.scenario + ' (' + state.state + ')';
      document.getElementById('stats').innerHTML =
        stat(state.active_users, 'active users') +
        stat(state.target_pool, 'target pool') +
        stat(state.elapsed_s.toFixed(0) + 's', 'elapsed');
      const body = document.querySelector('#endpoints tbody');
      body.innerHTML = '';
      (state.endpoints || []).forEach((ep) => {
        const row = document.createElement('tr');
        row.innerHTML = '<td>' + ep.endpoint + '</td><td>' + ep.count + '</td><td>' + ep.failures +
          '</td><td>' + ep.p50_ms.toFixed(0) + '</td><td>' + ep.p95_ms.toFixed(0) + '</td><td>' + ep.p99_ms.toFixed(0) + '</td>';
        body.appendChild(row);
      });
    };
    function stat(value, label) {
      return '<div class="stat"><div class="value">' + value + '</div><div class="label">' + label + '</div></div>';
    }
  </script>
</body>
</html>
`

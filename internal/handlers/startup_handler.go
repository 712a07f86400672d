package handlers

import (
	"net/http"
	"sync"
	"sync/atomic"
)

// Startup step names reported by the readiness endpoint
const (
	StepDatabase   = "Database connection"
	StepMigrations = "Running migrations"
	StepServices   = "Initializing services"
	StepServer     = "Server ready"
)

// StartupStatus tracks the initialization progress
type StartupStatus struct {
	mu       sync.RWMutex
	ready    bool
	current  string
	progress int
	steps    []StartupStep
}

type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type startupReport struct {
	Ready    bool          `json:"ready"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
}

// NewStartupStatus creates a tracker with the server's startup steps pending
func NewStartupStatus() *StartupStatus {
	s := &StartupStatus{current: "Initializing..."}
	for _, name := range []string{StepDatabase, StepMigrations, StepServices, StepServer} {
		s.steps = append(s.steps, StartupStep{Name: name})
	}
	return s
}

// SetCurrentStep updates the current initialization step
func (s *StartupStatus) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = step
}

// CompleteStep marks a step as completed and updates progress
func (s *StartupStatus) CompleteStep(stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.steps {
		if s.steps[i].Name == stepName {
			s.steps[i].Completed = true
			break
		}
	}

	completed := 0
	for _, step := range s.steps {
		if step.Completed {
			completed++
		}
	}
	s.progress = (completed * 100) / len(s.steps)
}

// MarkReady marks the server as fully initialized
func (s *StartupStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.steps {
		s.steps[i].Completed = true
	}
	s.ready = true
	s.current = StepServer
	s.progress = 100
}

// IsReady returns whether the server is fully initialized
func (s *StartupStatus) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *StartupStatus) report() startupReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return startupReport{
		Ready:    s.ready,
		Current:  s.current,
		Progress: s.progress,
		Steps:    append([]StartupStep(nil), s.steps...),
	}
}

// ShowStartupStatus reports initialization progress. It answers 503 until
// the server is ready so load balancers hold traffic back.
func (s *StartupStatus) ShowStartupStatus(w http.ResponseWriter, r *http.Request) {
	report := s.report()
	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, successResponse{Success: report.Ready, Data: report})
}

// StartupGate fronts the server while it initializes. Until Open is called
// it answers the readiness route from the tracked status and refuses every
// other request with 503.
type StartupGate struct {
	status *StartupStatus
	next   atomic.Pointer[http.Handler]
}

// NewStartupGate creates a closed gate reporting status
func NewStartupGate(status *StartupStatus) *StartupGate {
	return &StartupGate{status: status}
}

// Open routes all further requests to h and marks startup complete
func (g *StartupGate) Open(h http.Handler) {
	g.next.Store(&h)
	g.status.MarkReady()
}

func (g *StartupGate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.status.IsReady() {
		if next := g.next.Load(); next != nil {
			(*next).ServeHTTP(w, r)
			return
		}
	}
	if r.URL.Path == APIPrefix+"/health/ready" {
		g.status.ShowStartupStatus(w, r)
		return
	}
	w.Header().Set("Retry-After", "5")
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Message:    "Server is starting",
		StatusCode: http.StatusServiceUnavailable,
	})
}

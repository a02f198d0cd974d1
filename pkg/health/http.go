package health

import (
	"encoding/json"
	"net/http"

	"github.com/lewisedginton/gemini_relay/pkg/logger"
)

// Response is the JSON body served by the health endpoints.
type Response struct {
	Status  string                 `json:"status"` // "healthy" | "unhealthy"
	Probes  map[string]ProbeStatus `json:"probes,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// ProbeStatus is one probe's entry in Response.
type ProbeStatus struct {
	Status  string `json:"status"` // "ok" | "error"
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// LivenessHandler serves 200 while the process is alive and 503 once it should be restarted.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := c.Liveness(r.Context())
		c.write(w, report, err)
	}
}

// ReadinessHandler serves 200 while the process can take traffic and 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := c.Readiness(r.Context())
		c.write(w, report, err)
	}
}

func (c *Checker) write(w http.ResponseWriter, report *Report, err error) {
	resp := Response{Status: "healthy", Probes: make(map[string]ProbeStatus, len(report.Results))}
	code := http.StatusOK
	if !report.Healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		if err != nil {
			resp.Message = err.Error()
		}
	}

	for _, res := range report.Results {
		ps := ProbeStatus{Status: "ok", Latency: res.Latency.String()}
		if !res.Healthy {
			ps.Status = "error"
			ps.Error = res.Error
		}
		resp.Probes[res.Name] = ps
	}

	body, mErr := json.Marshal(resp)
	if mErr != nil {
		if c.log != nil {
			c.log.Error("Failed to encode health response", logger.ErrorField(mErr))
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

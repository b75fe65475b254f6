package api

import "net/http"

// Tool describes one read endpoint for agents that discover the API.
type Tool struct {
	Name        string            `json:"name"`
	Method      string            `json:"method"`
	Endpoint    string            `json:"endpoint"`
	Description string            `json:"description"`
	Inputs      map[string]string `json:"inputs"`
}

// tools lists the discoverable endpoints relative to baseURL.
func tools(baseURL string) []Tool {
	return []Tool{
		{
			Name:        "flights.list_regions",
			Method:      http.MethodGet,
			Endpoint:    baseURL + "/v1/regions",
			Description: "Lists the regions that have a snapshot.",
			Inputs:      map[string]string{},
		},
		{
			Name:        "flights.list_region_snapshot",
			Method:      http.MethodGet,
			Endpoint:    baseURL + "/v1/regions/{region}",
			Description: "Returns the latest snapshot for a given region.",
			Inputs:      map[string]string{"region": "Region identifier, e.g., region1"},
		},
		{
			Name:        "flights.analyze_region",
			Method:      http.MethodGet,
			Endpoint:    baseURL + "/v1/regions/{region}/analysis",
			Description: "Returns metrics, anomalies, and a summary for a region's latest snapshot.",
			Inputs:      map[string]string{"region": "Region identifier, e.g., region1"},
		},
		{
			Name:        "flights.get_by_callsign",
			Method:      http.MethodGet,
			Endpoint:    baseURL + "/v1/flights/{callsign}",
			Description: "Fetch the most recent reading for a callsign across all regions.",
			Inputs:      map[string]string{"callsign": "Target callsign"},
		},
		{
			Name:        "alerts.list_active",
			Method:      http.MethodGet,
			Endpoint:    baseURL + "/v1/alerts",
			Description: "List any active alerts detected by the ingestion pipeline.",
			Inputs:      map[string]string{},
		},
	}
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string][]Tool{"tools": tools(scheme + "://" + r.Host)}, s.logger)
}

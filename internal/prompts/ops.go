package prompts

import "fmt"

// Ops report section headings. The traveler stage reads the HANDOFF
// section, so these names are part of the pipeline protocol.
const (
	SectionMetrics         = "METRICS"
	SectionAnomalies       = "ANOMALIES"
	SectionRecommendations = "RECOMMENDATIONS"
	SectionHandoff         = "HANDOFF"
)

const opsSystemPrompt = `You are an operations analyst summarizing real-time airspace telemetry. ` +
	`Respond in markdown with sections: ` + SectionMetrics + `, ` + SectionAnomalies + `, ` +
	SectionRecommendations + `, and ` + SectionHandoff + `. ` +
	`Use a level-two heading ("## ` + SectionHandoff + `") for each section. ` +
	`Handoff should be a concise note for the traveler support agent.`

// opsUserTemplate format verbs: region, question, analysis JSON, alerts JSON.
const opsUserTemplate = `Region: %s
Traveler question: %s
Snapshot JSON: %s
Alerts JSON: %s
Please follow the required sections strictly.`

// OpsSystemPrompt returns the system instructions for the operations
// analyst stage.
func OpsSystemPrompt() string {
	return opsSystemPrompt
}

// OpsUserPrompt returns the data message for the operations analyst
// stage. The JSON arguments are pre-encoded compacted payloads.
func OpsUserPrompt(region, question, analysisJSON, alertsJSON string) string {
	return fmt.Sprintf(opsUserTemplate, region, question, analysisJSON, alertsJSON)
}

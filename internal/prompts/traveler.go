package prompts

import "fmt"

const travelerSystemPrompt = `You are a traveler support agent. ` +
	`Use the provided telemetry and ops handoff to answer in friendly prose. ` +
	`Include a status sentence, a movement/altitude highlight, and mention anomalies only if relevant.`

// travelerUserTemplate format verbs: callsign, question, handoff, flight JSON.
const travelerUserTemplate = `Callsign: %s
Traveler question: %s
Ops handoff: %s
Flight context JSON: %s
Respond as a short chat reply.`

// TravelerSystemPrompt returns the system instructions for the
// traveler support stage.
func TravelerSystemPrompt() string {
	return travelerSystemPrompt
}

// TravelerUserPrompt returns the data message for the traveler support
// stage. handoff is the ops stage's HANDOFF section, or the full report
// when the section is missing.
func TravelerUserPrompt(callsign, question, handoff, flightJSON string) string {
	return fmt.Sprintf(travelerUserTemplate, callsign, question, handoff, flightJSON)
}

package prompts

import (
	"strings"
	"testing"
)

func TestOpsSystemPrompt_NamesAllSections(t *testing.T) {
	p := OpsSystemPrompt()
	for _, s := range []string{SectionMetrics, SectionAnomalies, SectionRecommendations, SectionHandoff} {
		if !strings.Contains(p, s) {
			t.Errorf("ops system prompt missing section %s", s)
		}
	}
}

func TestOpsUserPrompt(t *testing.T) {
	p := OpsUserPrompt("region1", "Is my flight on time?", `{"region":"region1"}`, `{"alerts":[]}`)

	for _, want := range []string{
		"Region: region1\n",
		"Traveler question: Is my flight on time?\n",
		`Snapshot JSON: {"region":"region1"}`,
		`Alerts JSON: {"alerts":[]}`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("ops user prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "%!") {
		t.Errorf("ops user prompt has a formatting error:\n%s", p)
	}
}

func TestTravelerUserPrompt(t *testing.T) {
	p := TravelerUserPrompt("TEST123", "Where is it?", "All calm.", `{"status":"ok"}`)

	for _, want := range []string{
		"Callsign: TEST123\n",
		"Ops handoff: All calm.\n",
		`Flight context JSON: {"status":"ok"}`,
		"Respond as a short chat reply.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("traveler user prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "%!") {
		t.Errorf("traveler user prompt has a formatting error:\n%s", p)
	}
}

func TestTravelerSystemPrompt(t *testing.T) {
	if !strings.Contains(TravelerSystemPrompt(), "status sentence") {
		t.Error("traveler system prompt should ask for a status sentence")
	}
}

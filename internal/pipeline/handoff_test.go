package pipeline

import (
	"strings"
	"testing"
)

func TestExtractHandoff(t *testing.T) {
	tests := []struct {
		name      string
		report    string
		want      string
		wantFound bool
	}{
		{
			name: "atx headings",
			report: "## METRICS\n3 aircraft.\n\n## ANOMALIES\n- none\n\n## RECOMMENDATIONS\nMonitor.\n\n" +
				"## HANDOFF\nRegion calm; TEST123 cruising.\n",
			want:      "Region calm; TEST123 cruising.",
			wantFound: true,
		},
		{
			name:      "handoff not last",
			report:    "## HANDOFF\nKeep it short.\n\n## RECOMMENDATIONS\nMonitor.\n",
			want:      "Keep it short.",
			wantFound: true,
		},
		{
			name:      "nested subheading kept",
			report:    "## HANDOFF\nSummary line.\n\n### Details\n- item\n\n# Appendix\nx\n",
			want:      "Summary line.\n\n### Details\n- item",
			wantFound: true,
		},
		{
			name:      "numbered bold heading",
			report:    "### 1. Metrics\nfine\n### 4. **Handoff**\nAll nominal.",
			want:      "All nominal.",
			wantFound: true,
		},
		{
			name:      "bold label paragraph",
			report:    "**METRICS**\nfine\n\n**HANDOFF**\nTell the traveler it is on time.\n",
			want:      "Tell the traveler it is on time.",
			wantFound: true,
		},
		{
			name:      "inline label",
			report:    "METRICS: ok\n\nHANDOFF: Flight is airborne.\n",
			want:      "Flight is airborne.",
			wantFound: true,
		},
		{
			name:      "list body",
			report:    "## HANDOFF\n- one\n- two\n",
			want:      "- one\n- two",
			wantFound: true,
		},
		{
			name:      "setext heading",
			report:    "HANDOFF\n-------\nBody text.\n",
			want:      "Body text.",
			wantFound: true,
		},
		{
			name: "label-like line inside heading section kept",
			report: "## METRICS\n1 aircraft.\n\n## HANDOFF\nTEST123 is cruising normally.\n\n" +
				"Anomalies: none affecting this flight.\n",
			want:      "TEST123 is cruising normally.\n\nAnomalies: none affecting this flight.",
			wantFound: true,
		},
		{
			name:      "heading section opening with a label-like line",
			report:    "## METRICS\nx\n\n## HANDOFF\nMetrics: region calm, TEST123 on schedule.\n",
			want:      "Metrics: region calm, TEST123 on schedule.",
			wantFound: true,
		},
		{
			name:      "label section ends at next label",
			report:    "**HANDOFF:** Flight is airborne.\n\n**METRICS:** 3 aircraft.\n",
			want:      "Flight is airborne.",
			wantFound: true,
		},
		{
			name:      "label section ends at heading",
			report:    "HANDOFF:\nOn time.\n\n# Appendix\nraw data\n",
			want:      "On time.",
			wantFound: true,
		},
		{
			name:   "prose mentioning handoff is not a label",
			report: "Handoff to traveler pending.\n",
			want:   "Handoff to traveler pending.",
		},
		{
			name:   "missing section falls back to full report",
			report: "## METRICS\nfine\n",
			want:   "## METRICS\nfine",
		},
		{
			name:   "empty section falls back",
			report: "## HANDOFF\n\n## METRICS\nx\n",
			want:   "## HANDOFF\n\n## METRICS\nx",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractHandoff(tt.report)
			if found != tt.wantFound {
				t.Errorf("found = %v, want %v", found, tt.wantFound)
			}
			if got != tt.want {
				t.Errorf("handoff =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("## HANDOFF\nAll **calm**.")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(html, "<h2>HANDOFF</h2>") || !strings.Contains(html, "<strong>calm</strong>") {
		t.Errorf("html = %q", html)
	}
}

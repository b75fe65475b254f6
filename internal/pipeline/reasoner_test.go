package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nugget/airspace-copilot/internal/config"
	"github.com/nugget/airspace-copilot/internal/llm"
	"github.com/nugget/airspace-copilot/internal/usage"
)

type fakeClient struct {
	model    string
	messages []llm.Message
	resp     *llm.ChatResponse
	err      error
}

func (f *fakeClient) Chat(_ context.Context, model string, messages []llm.Message, _ llm.Options) (*llm.ChatResponse, error) {
	f.model, f.messages = model, messages
	return f.resp, f.err
}

func (f *fakeClient) Ping(context.Context) error { return nil }

type memUsage struct {
	recs []usage.Record
	err  error
}

func (m *memUsage) Record(_ context.Context, rec usage.Record) error {
	m.recs = append(m.recs, rec)
	return m.err
}

type tokenTally struct{ in, out int }

func (t *tokenTally) ObserveTokens(_, _ string, in, out int) {
	t.in += in
	t.out += out
}

func TestLLMReasoner_Complete(t *testing.T) {
	client := &fakeClient{resp: &llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: "  On time.  "},
		InputTokens:  1000,
		OutputTokens: 100,
	}}
	rec := &memUsage{}
	tally := &tokenTally{}
	r := NewLLMReasoner(LLMReasonerConfig{
		Client:       client,
		Provider:     "anthropic",
		DefaultModel: "big",
		Models:       map[string]string{StageTraveler: "small"},
		Usage:        rec,
		Pricing:      map[string]config.PricingEntry{"small": {InputPerMillion: 1, OutputPerMillion: 10}},
		Tokens:       tally,
	})

	got, err := r.Complete(context.Background(), Request{
		RunID: "run-1", Stage: StageTraveler, Region: "region1", Callsign: "TEST123",
		System: "sys", User: "user",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "On time." {
		t.Errorf("text = %q, want trimmed", got)
	}
	if client.model != "small" {
		t.Errorf("model = %q, want stage override", client.model)
	}
	if len(client.messages) != 2 || client.messages[0].Role != llm.RoleSystem || client.messages[1].Content != "user" {
		t.Errorf("messages = %+v", client.messages)
	}
	if len(rec.recs) != 1 {
		t.Fatalf("usage records = %d, want 1", len(rec.recs))
	}
	u := rec.recs[0]
	if u.RunID != "run-1" || u.Stage != StageTraveler || u.Provider != "anthropic" || u.Model != "small" {
		t.Errorf("usage record = %+v", u)
	}
	if math.Abs(u.CostUSD-0.002) > 1e-12 {
		t.Errorf("CostUSD = %v, want 0.002", u.CostUSD)
	}
	if tally.in != 1000 || tally.out != 100 {
		t.Errorf("tokens = %d/%d", tally.in, tally.out)
	}
}

func TestLLMReasoner_DefaultModelAndErrors(t *testing.T) {
	down := errors.New("unreachable")
	client := &fakeClient{err: down}
	r := NewLLMReasoner(LLMReasonerConfig{Client: client, DefaultModel: "big"})

	if _, err := r.Complete(context.Background(), Request{Stage: StageOps}); !errors.Is(err, down) {
		t.Errorf("err = %v, want client error", err)
	}
	if client.model != "big" {
		t.Errorf("model = %q, want default", client.model)
	}
}

func TestLLMReasoner_UsageFailureIsNotFatal(t *testing.T) {
	client := &fakeClient{resp: &llm.ChatResponse{Message: llm.Message{Content: "ok"}}}
	r := NewLLMReasoner(LLMReasonerConfig{Client: client, DefaultModel: "m", Usage: &memUsage{err: errors.New("disk full")}})

	if got, err := r.Complete(context.Background(), Request{Stage: StageOps}); err != nil || got != "ok" {
		t.Errorf("Complete = %q, %v", got, err)
	}
}

package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mwenda/keysage/internal/intent"
	"github.com/mwenda/keysage/internal/secrets"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubClassifier returns a fixed classification or error.
type stubClassifier struct {
	cls *intent.Classification
	err error
}

func (s *stubClassifier) Classify(context.Context, string) (*intent.Classification, error) {
	return s.cls, s.err
}

// spyOps records which façade operations were invoked.
type spyOps struct {
	listCalls   int
	getCalls    []string
	countCalls  int
	searchCalls int
	err         error
}

func (s *spyOps) ListSecrets(context.Context) ([]secrets.Summary, error) {
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	return []secrets.Summary{{Path: "/prod/db", Type: secrets.TypeStatic}}, nil
}

func (s *spyOps) GetSecretValue(_ context.Context, path string) (*secrets.Value, error) {
	s.getCalls = append(s.getCalls, path)
	if s.err != nil {
		return nil, s.err
	}
	return &secrets.Value{Path: path, Type: secrets.TypeStatic, Plain: "hunter2"}, nil
}

func (s *spyOps) CountByType(context.Context) (secrets.TypeCounts, error) {
	s.countCalls++
	if s.err != nil {
		return secrets.TypeCounts{}, s.err
	}
	return secrets.TypeCounts{Static: 3, Rotated: 2, Other: 1}, nil
}

func (s *spyOps) SearchSecrets(context.Context, string, secrets.Type) ([]secrets.Summary, error) {
	s.searchCalls++
	if s.err != nil {
		return nil, s.err
	}
	return []secrets.Summary{{Path: "/prod/db", Type: secrets.TypeStatic}}, nil
}

func (s *spyOps) total() int {
	return s.listCalls + len(s.getCalls) + s.countCalls + s.searchCalls
}

func newPipeline(c classifier, ops secretOps) *Pipeline {
	return NewPipeline(c, ops, NewSessionStore(), discardLogger())
}

func TestProcess_ListSecrets(t *testing.T) {
	ops := &spyOps{}
	p := newPipeline(&stubClassifier{cls: &intent.Classification{Intent: intent.IntentListSecrets}}, ops)

	turn, err := p.Process(context.Background(), &Input{SessionID: "s1", Message: "show all secrets"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if turn.Intent != intent.IntentListSecrets {
		t.Errorf("Intent = %q", turn.Intent)
	}
	if ops.listCalls != 1 {
		t.Errorf("listCalls = %d", ops.listCalls)
	}
	if !strings.Contains(turn.Message, "/prod/db") {
		t.Errorf("Message = %q", turn.Message)
	}
}

func TestProcess_GetSecret(t *testing.T) {
	ops := &spyOps{}
	cls := &intent.Classification{
		Intent: intent.IntentGetSecret,
		Params: map[string]string{"path": "/prod/db"},
	}
	p := newPipeline(&stubClassifier{cls: cls}, ops)

	turn, err := p.Process(context.Background(), &Input{SessionID: "s1", Message: "get /prod/db"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(ops.getCalls) != 1 || ops.getCalls[0] != "/prod/db" {
		t.Errorf("getCalls = %v", ops.getCalls)
	}
	if !strings.Contains(turn.Message, "hunter2") {
		t.Errorf("value missing from reply: %q", turn.Message)
	}
}

func TestProcess_GetSecretWithoutPath(t *testing.T) {
	ops := &spyOps{}
	cls := &intent.Classification{Intent: intent.IntentGetSecret, Params: map[string]string{}}
	p := newPipeline(&stubClassifier{cls: cls}, ops)

	turn, err := p.Process(context.Background(), &Input{SessionID: "s1", Message: "get the secret"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ops.total() != 0 {
		t.Errorf("no operation should run without a path, got %d calls", ops.total())
	}
	if !strings.Contains(turn.Message, "path") {
		t.Errorf("reply should ask for a path: %q", turn.Message)
	}
}

func TestProcess_CountByType(t *testing.T) {
	ops := &spyOps{}
	p := newPipeline(&stubClassifier{cls: &intent.Classification{Intent: intent.IntentCountByType}}, ops)

	turn, err := p.Process(context.Background(), &Input{SessionID: "s1", Message: "how many secrets"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "You have 6 secrets: 3 static, 2 rotated, 0 dynamic, 1 other."
	if turn.Message != want {
		t.Errorf("Message = %q, want %q", turn.Message, want)
	}
}

func TestProcess_UnknownIntentNeverTouchesFacade(t *testing.T) {
	ops := &spyOps{}
	p := newPipeline(&stubClassifier{cls: &intent.Classification{Intent: intent.IntentUnknown}}, ops)

	turn, err := p.Process(context.Background(), &Input{SessionID: "s1", Message: "delete everything"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ops.total() != 0 {
		t.Fatalf("façade invoked %d times for unknown intent", ops.total())
	}
	if turn.Intent != intent.IntentUnknown {
		t.Errorf("Intent = %q", turn.Intent)
	}
	if !strings.Contains(turn.Message, "list secrets") {
		t.Errorf("expected clarification, got %q", turn.Message)
	}
}

func TestProcess_ClassifierFailureNeverTouchesFacade(t *testing.T) {
	ops := &spyOps{}
	cerr := &intent.ClassificationError{Err: errors.New("provider down")}
	p := newPipeline(&stubClassifier{err: cerr}, ops)

	turn, err := p.Process(context.Background(), &Input{SessionID: "s1", Message: "list secrets"})
	if err != nil {
		t.Fatalf("Process should degrade to a reply, got error %v", err)
	}
	if ops.total() != 0 {
		t.Fatalf("façade invoked %d times after classification failure", ops.total())
	}
	if !strings.Contains(turn.Message, "try again") {
		t.Errorf("Message = %q", turn.Message)
	}
}

func TestProcess_UpstreamErrorsBecomeReplies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", fmt.Errorf("x: %w", secrets.ErrNotFound), "does not exist"},
		{"access denied", fmt.Errorf("x: %w", secrets.ErrAccessDenied), "Access denied"},
		{"unavailable", fmt.Errorf("x: %w", secrets.ErrUpstreamUnavailable), "unreachable"},
		{"timeout", fmt.Errorf("x: %w", secrets.ErrTimeout), "too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := &spyOps{err: tt.err}
			cls := &intent.Classification{
				Intent: intent.IntentGetSecret,
				Params: map[string]string{"path": "/prod/db"},
			}
			p := newPipeline(&stubClassifier{cls: cls}, ops)

			turn, err := p.Process(context.Background(), &Input{SessionID: "s1", Message: "get /prod/db"})
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if !strings.Contains(turn.Message, tt.want) {
				t.Errorf("Message = %q, want substring %q", turn.Message, tt.want)
			}
		})
	}
}

func TestProcess_RecordsTranscript(t *testing.T) {
	store := NewSessionStore()
	p := NewPipeline(
		&stubClassifier{cls: &intent.Classification{Intent: intent.IntentCountByType}},
		&spyOps{}, store, discardLogger())

	for i := 0; i < 3; i++ {
		if _, err := p.Process(context.Background(), &Input{SessionID: "s1", UserID: "u1", Message: "count"}); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	history := store.History("s1")
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Intent != string(intent.IntentCountByType) {
		t.Errorf("recorded intent = %q", history[0].Intent)
	}
}

func TestProcess_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newPipeline(&stubClassifier{cls: &intent.Classification{Intent: intent.IntentListSecrets}}, &spyOps{})

	if _, err := p.Process(ctx, &Input{SessionID: "s1", Message: "list"}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestSessionStore_Isolation(t *testing.T) {
	store := NewSessionStore()
	store.Get("a", "u1")
	store.Get("b", "u2")
	store.Append("a", TurnRecord{UserMessage: "hi"})

	if got := len(store.History("a")); got != 1 {
		t.Errorf("session a history = %d", got)
	}
	if got := len(store.History("b")); got != 0 {
		t.Errorf("session b history = %d, want isolated empty", got)
	}
	store.Delete("a")
	if store.History("a") != nil {
		t.Error("deleted session should have no history")
	}
	if store.Count() != 1 {
		t.Errorf("Count = %d", store.Count())
	}
}

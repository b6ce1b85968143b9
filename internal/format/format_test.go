package format

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mwenda/keysage/internal/secrets"
)

func TestSecretList_MasksValues(t *testing.T) {
	out := SecretList([]secrets.Summary{
		{Path: "/prod/db-password", Type: secrets.TypeStatic},
		{Path: "/prod/service-account", Type: secrets.TypeRotated},
	})
	if !strings.Contains(out, "Found 2 secrets") {
		t.Errorf("missing count header: %q", out)
	}
	if !strings.Contains(out, "/prod/db-password") {
		t.Errorf("missing path: %q", out)
	}
	if strings.Count(out, Mask) != 2 {
		t.Errorf("every entry must be masked: %q", out)
	}
}

func TestSecretList_Empty(t *testing.T) {
	if out := SecretList(nil); out != "No secrets found." {
		t.Errorf("out = %q", out)
	}
}

func TestSecretValue_Unmasked(t *testing.T) {
	out := SecretValue(&secrets.Value{
		Path:  "/prod/db-password",
		Type:  secrets.TypeStatic,
		Plain: "hunter2",
	})
	if !strings.Contains(out, "hunter2") {
		t.Errorf("value must be shown on explicit retrieval: %q", out)
	}
	if strings.Contains(out, Mask) {
		t.Errorf("retrieval output must not be masked: %q", out)
	}
}

func TestSecretValue_StructuredFields(t *testing.T) {
	out := SecretValue(&secrets.Value{
		Path:   "/prod/service-account",
		Type:   secrets.TypeRotated,
		Plain:  `{"username":"svc","password":"pw"}`,
		Fields: map[string]string{"username": "svc", "password": "pw"},
	})
	if !strings.Contains(out, "username: svc") || !strings.Contains(out, "password: pw") {
		t.Errorf("fields must be labeled: %q", out)
	}
	// Field order is sorted for stable output.
	if strings.Index(out, "password") > strings.Index(out, "username") {
		t.Errorf("fields not sorted: %q", out)
	}
}

func TestTypeCounts_RoundTrip(t *testing.T) {
	tests := []secrets.TypeCounts{
		{Static: 3, Rotated: 2, Dynamic: 0, Other: 1},
		{},
		{Static: 120, Rotated: 14, Dynamic: 7, Other: 33},
	}
	for _, want := range tests {
		text := TypeCounts(want)
		got, err := ParseTypeCounts(text)
		if err != nil {
			t.Fatalf("ParseTypeCounts(%q): %v", text, err)
		}
		if got != want {
			t.Errorf("round trip: got %+v, want %+v (text %q)", got, want, text)
		}
	}
}

func TestTypeCounts_ZeroTypesStillListed(t *testing.T) {
	out := TypeCounts(secrets.TypeCounts{Static: 3, Rotated: 2, Other: 1})
	want := "You have 6 secrets: 3 static, 2 rotated, 0 dynamic, 1 other."
	if out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestParseTypeCounts_Malformed(t *testing.T) {
	for _, in := range []string{"", "six secrets", "You have 6 secrets: 3 static"} {
		if _, err := ParseTypeCounts(in); err == nil {
			t.Errorf("ParseTypeCounts(%q) should fail", in)
		}
	}
}

func TestSearchResults(t *testing.T) {
	matches := []secrets.Summary{{Path: "/prod/api-key", Type: secrets.TypeStatic}}
	out := SearchResults("/prod/", secrets.TypeStatic, matches)
	if !strings.Contains(out, `prefix "/prod/"`) || !strings.Contains(out, `type "static"`) {
		t.Errorf("criteria missing: %q", out)
	}
	if !strings.Contains(out, Mask) {
		t.Errorf("search results must be masked: %q", out)
	}

	empty := SearchResults("/staging/", "", nil)
	if !strings.Contains(empty, "No secrets match") {
		t.Errorf("empty result text = %q", empty)
	}
}

func TestError_KindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", secrets.ErrNotFound), "does not exist"},
		{fmt.Errorf("x: %w", secrets.ErrAccessDenied), "Access denied"},
		{fmt.Errorf("x: %w", secrets.ErrTimeout), "too long"},
		{fmt.Errorf("x: %w", secrets.ErrUpstreamUnavailable), "unreachable"},
		{errors.New("anything else"), "rephrasing"},
	}
	for _, tt := range tests {
		if out := Error(tt.err); !strings.Contains(out, tt.want) {
			t.Errorf("Error(%v) = %q, want substring %q", tt.err, out, tt.want)
		}
	}
}

package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	secretFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(secretFile, []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	emptyFile := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(emptyFile, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		src     Source
		expect  string
		wantErr bool
	}{
		{
			name:   "inline value",
			src:    Source{Name: "token", Value: " abc "},
			expect: "abc",
		},
		{
			name:   "file value is trimmed",
			src:    Source{Name: "token", File: secretFile},
			expect: "s3cret",
		},
		{
			name:   "file takes precedence over value",
			src:    Source{Name: "token", Value: "inline", File: secretFile},
			expect: "s3cret",
		},
		{
			name:    "empty file",
			src:     Source{Name: "token", File: emptyFile},
			wantErr: true,
		},
		{
			name:    "missing file",
			src:     Source{Name: "token", File: filepath.Join(t.TempDir(), "nope")},
			wantErr: true,
		},
		{
			name:    "nothing configured",
			src:     Source{Name: "token"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Load(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

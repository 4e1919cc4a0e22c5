package execx

import (
	"context"
	"strings"
	"testing"
)

func TestQuoteArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "plain args",
			args: []string{"build", "-t", "repo:tag"},
			want: "build -t repo:tag",
		},
		{
			name: "arg with spaces",
			args: []string{"-t", "my image"},
			want: "-t 'my image'",
		},
		{
			name: "empty arg",
			args: []string{""},
			want: "''",
		},
		{
			name: "arg with single quote",
			args: []string{"it's"},
			want: `'it'\''s'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quoteArgs(tt.args); got != tt.want {
				t.Errorf("quoteArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunnerDryRun(t *testing.T) {
	r := Runner{DryRun: true}
	// Command does not exist; dry-run must not attempt to execute it.
	if err := r.Run(context.Background(), "definitely-not-a-real-binary", "arg"); err != nil {
		t.Fatalf("dry run returned error: %v", err)
	}
}

func TestRunnerOutput(t *testing.T) {
	r := Runner{}
	out, err := r.Output(context.Background(), "echo", "hello", "world")
	if err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if out != "hello world" {
		t.Errorf("Output() = %q, want %q", out, "hello world")
	}
}

func TestRunnerFailureIncludesCommand(t *testing.T) {
	r := Runner{}
	err := r.Run(context.Background(), "false")
	if err == nil {
		t.Fatal("expected error from failing command")
	}
	if !strings.Contains(err.Error(), "exit=1") {
		t.Errorf("error %q does not include exit status", err)
	}
}

package taskdef

import (
	"errors"
	"reflect"
	"testing"

	ierrors "github.com/savaki/ecs-deployer/internal/errors"
)

func TestRender(t *testing.T) {
	template := []byte(`{
  "family": "{{APP}}-{{DEPLOY_TAG}}",
  "containerDefinitions": [
    {
      "name": "{{APP}}",
      "image": "{{IMAGE_URI}}"
    }
  ]
}`)

	got, err := Render(template, map[string]string{
		"APP":        "web",
		"DEPLOY_TAG": "ab12cd34",
		"IMAGE_URI":  "123456789012.dkr.ecr.us-east-1.amazonaws.com/web:deadbeef",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	want := `{
  "family": "web-ab12cd34",
  "containerDefinitions": [
    {
      "name": "web",
      "image": "123456789012.dkr.ecr.us-east-1.amazonaws.com/web:deadbeef"
    }
  ]
}`
	if string(got) != want {
		t.Errorf("Render() = %s, want %s", got, want)
	}
}

func TestRenderLeavesNoMarkers(t *testing.T) {
	template := []byte(`{"image": "{{IMAGE_URI}}", "cpu": "{{CPU}}"}`)

	got, err := Render(template, map[string]string{
		"IMAGE_URI": "repo:tag",
		"CPU":       "256",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if len(Tokens(got)) != 0 {
		t.Errorf("rendered output still contains token markers: %s", got)
	}
}

func TestRenderMissingValue(t *testing.T) {
	template := []byte(`{"image": "{{IMAGE_URI}}"}`)

	_, err := Render(template, map[string]string{})
	if !errors.Is(err, ierrors.ErrUnresolvedToken) {
		t.Fatalf("Render() error = %v, want ErrUnresolvedToken", err)
	}
}

func TestRenderUnusedValue(t *testing.T) {
	template := []byte(`{"image": "{{IMAGE_URI}}"}`)

	_, err := Render(template, map[string]string{
		"IMAGE_URI": "repo:tag",
		"TYPO_KEY":  "value",
	})
	if !errors.Is(err, ierrors.ErrUnusedToken) {
		t.Fatalf("Render() error = %v, want ErrUnusedToken", err)
	}
}

func TestRenderRepeatedToken(t *testing.T) {
	template := []byte(`{{APP}} and {{APP}} again`)

	got, err := Render(template, map[string]string{"APP": "web"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if string(got) != "web and web again" {
		t.Errorf("Render() = %q", got)
	}
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []string
	}{
		{
			name:     "distinct in order",
			template: `{{B}} {{A}} {{B}}`,
			want:     []string{"B", "A"},
		},
		{
			name:     "no tokens",
			template: `{"image": "fixed"}`,
			want:     nil,
		},
		{
			name:     "lowercase is not a token",
			template: `{{lower}} {{UPPER}}`,
			want:     []string{"UPPER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokens([]byte(tt.template))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokens() = %v, want %v", got, tt.want)
			}
		})
	}
}

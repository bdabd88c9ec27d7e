package playbook

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestMappingPreservesOrder(t *testing.T) {
	m := M(
		KV("zeta", 1),
		KV("alpha", 2),
		KV("mid", 3),
	)

	out, err := yaml.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	text := string(out)
	zeta := strings.Index(text, "zeta:")
	alpha := strings.Index(text, "alpha:")
	mid := strings.Index(text, "mid:")
	if zeta < 0 || alpha < 0 || mid < 0 {
		t.Fatalf("missing keys in output:\n%s", text)
	}
	if !(zeta < alpha && alpha < mid) {
		t.Fatalf("keys not in insertion order:\n%s", text)
	}
}

func TestStrForcesExplicitString(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name:  "numeric-looking memory",
			entry: Str("vm_memory", "2048"),
			want:  `vm_memory: "2048"`,
		},
		{
			name:  "reserved literal user",
			entry: Str("ci_user", "no"),
			want:  `ci_user: "no"`,
		},
		{
			name:  "boolean-looking value",
			entry: Str("flag", "true"),
			want:  `flag: "true"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := yaml.Marshal(M(tt.entry))
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if !strings.Contains(string(out), tt.want) {
				t.Fatalf("output %q does not contain %q", string(out), tt.want)
			}
		})
	}
}

func TestStrRoundTripsAsString(t *testing.T) {
	out, err := yaml.Marshal(M(Str("vm_memory", "2048")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := decoded["vm_memory"].(string); !ok || got != "2048" {
		t.Fatalf("vm_memory decoded as %T %v, want string \"2048\"", decoded["vm_memory"], decoded["vm_memory"])
	}
}

func TestNestedMapping(t *testing.T) {
	m := M(KV("outer", M(KV("inner", "value"))))

	out, err := yaml.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]map[string]string
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["outer"]["inner"] != "value" {
		t.Fatalf("nested value lost: %v", decoded)
	}
}

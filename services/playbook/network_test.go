package playbook

import (
	"errors"
	"testing"
)

func TestHostFromIPConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "typical config",
			input: "ip=10.0.0.5/24,gw=10.0.0.1",
			want:  "10.0.0.5",
		},
		{
			name:  "extra segments",
			input: "ip=192.168.0.40/24,gw=192.168.0.1,ip6=auto",
			want:  "192.168.0.40",
		},
		{
			name:  "no gateway",
			input: "ip=172.16.1.9/16",
			want:  "172.16.1.9",
		},
		{
			name:    "missing ip prefix",
			input:   "gw=10.0.0.1",
			wantErr: true,
		},
		{
			name:    "missing slash",
			input:   "ip=10.0.0.5,gw=10.0.0.1",
			wantErr: true,
		},
		{
			name:    "not an address",
			input:   "ip=example/24,gw=10.0.0.1",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HostFromIPConfig(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HostFromIPConfig(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrBadIPConfig) {
					t.Fatalf("error %v is not ErrBadIPConfig", err)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("HostFromIPConfig(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

package main

import (
	"strings"
	"testing"
)

func TestRunHelper(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{
			name: "static url",
			args: []string{"helper", "--static", "http://rm2:8088"},
			want: "http://rm2:8088\n",
		},
		{
			name: "command output",
			args: []string{"helper", "--command", "echo http://rm1:8088"},
			want: "http://rm1:8088\n",
		},
		{
			name: "known hosts warning dropped",
			args: []string{"helper", "--command", "echo 'Warning: Permanently added rm1 (RSA) to the list of known hosts.'; echo http://rm3:8088"},
			want: "http://rm3:8088\n",
		},
		{
			name:    "not a url",
			args:    []string{"helper", "--command", "echo rm1"},
			wantErr: "out of reach",
		},
		{
			name:    "command fails",
			args:    []string{"helper", "--command", "echo boom >&2; exit 3"},
			wantErr: "helper failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeCmd(t, tt.args...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("helper command error = %v", err)
			}
			if output != tt.want {
				t.Errorf("output = %q, want %q", output, tt.want)
			}
		})
	}
}

func TestRunHelper_FromConfig(t *testing.T) {
	path := writeConfig(t, "helper_server:\n  enabled: true\n  static_url: http://rm4:8088\n")

	output, err := executeCmd(t, "helper", "-c", path)
	if err != nil {
		t.Fatalf("helper command error = %v", err)
	}
	if output != "http://rm4:8088\n" {
		t.Errorf("output = %q", output)
	}
}

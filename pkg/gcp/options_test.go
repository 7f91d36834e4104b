package gcp

import (
	"testing"

	"github.com/angelmondragon/storepos-backend/pkg/config"
)

func TestClientOptions(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.GCPConfig
		want int
	}{
		{"json wins", config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}, 1},
		{"file", config.GCPConfig{ApplicationCredentials: "/tmp/creds"}, 1},
		{"default credentials", config.GCPConfig{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(ClientOptions(tc.cfg)); got != tc.want {
				t.Fatalf("expected %d options, got %d", tc.want, got)
			}
		})
	}
}

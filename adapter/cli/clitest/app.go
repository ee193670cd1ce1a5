package clitest

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/supabase-go/adapter/cli"
	"github.com/felixgeelhaar/supabase-go/pkg/config"
)

// InstallApp builds a CLI app against p, installs it globally and removes it
// when the test ends.
func InstallApp(t *testing.T, p *Project) *cli.App {
	t.Helper()
	a, err := cli.NewApp(&config.Config{
		AppEnv:                  "test",
		URL:                     p.URL,
		Key:                     APIKey,
		Schema:                  "public",
		SessionKey:              "supabase.auth.token",
		HTTPTimeout:             5 * time.Second,
		BreakerEnabled:          true,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          time.Second,
	}, nil, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cli.SetApp(a)
	t.Cleanup(func() {
		cli.SetApp(nil)
		_ = a.Close()
	})
	return a
}

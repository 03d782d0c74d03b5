package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"nhooyr.io/websocket"
)

var checkServer string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration and dependencies",
	Long: `Loads the environment configuration, builds the recognizer and reports
classifier and cache health. With --server, also checks a running fen-server.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkServer, "server", "", "base URL of a running server, e.g. http://localhost:8080")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	deps, err := loadDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := deps.Service.Health(ctx)
	cmd.Printf("local: status=%s classifier=%s cache=%s\n", h.Status, h.Classifier, h.Cache)

	if checkServer == "" {
		if h.Status != "ok" {
			return fmt.Errorf("local dependencies degraded")
		}
		return nil
	}
	return checkRemoteServer(ctx, cmd, strings.TrimRight(checkServer, "/"))
}

func checkRemoteServer(ctx context.Context, cmd *cobra.Command, base string) error {
	status, body, err := fasthttp.GetTimeout(nil, base+"/healthz", 5*time.Second)
	if err != nil {
		return fmt.Errorf("/healthz: %w", err)
	}
	cmd.Printf("/healthz: %d %s\n", status, strings.TrimSpace(string(body)))

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/api/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "check")
	cmd.Println("/api/stream: ok")

	if status != fasthttp.StatusOK {
		return fmt.Errorf("server reports status %d", status)
	}
	return nil
}

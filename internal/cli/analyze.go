package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/park285/chessfen/internal/service/analysis"
)

var (
	analyzeCorners     string
	analyzeOrientation string
	analyzeJSON        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image]",
	Short: "Print the FEN of a board image",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCorners, "corners", "", "board corners as x1,y1,...,x4,y4")
	analyzeCmd.Flags().StringVar(&analyzeOrientation, "orientation", "", "white_bottom, black_bottom or auto")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the full JSON response")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	deps, err := loadDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	resp, err := deps.Service.Analyze(context.Background(), analysis.Upload{
		Data:        data,
		Filename:    filepath.Base(args[0]),
		Corners:     analyzeCorners,
		Orientation: analyzeOrientation,
	})
	if err != nil {
		return err
	}

	if analyzeJSON {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}
	cmd.Println(resp.FEN)
	cmd.Printf("active color: %s (%s, %s)\n", resp.ActiveColor, resp.ActiveColorConfidence, resp.Cue)
	if resp.Message != "" {
		cmd.Println(resp.Message)
	}
	cmd.Println(resp.LichessURL)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/park285/chessfen/pkg/fendto"
)

var (
	renderOut         string
	renderArrow       string
	renderHighlight   string
	renderOrientation string
	renderSquareSize  int
	renderMargin      int
)

var renderCmd = &cobra.Command{
	Use:   "render [fen]",
	Short: "Draw a FEN position as PNG",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "board.png", "output file")
	renderCmd.Flags().StringVar(&renderArrow, "arrow", "", "draw an arrow for a move such as e2e4")
	renderCmd.Flags().StringVar(&renderHighlight, "highlight", "", "tint both squares of a move such as e2e4")
	renderCmd.Flags().StringVar(&renderOrientation, "orientation", "", "white_bottom or black_bottom")
	renderCmd.Flags().IntVar(&renderSquareSize, "square-size", 64, "square side in pixels")
	renderCmd.Flags().IntVar(&renderMargin, "margin", 0, "frame width in pixels")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	deps, err := loadDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	png, err := deps.Service.Render(context.Background(), fendto.RenderRequest{
		FEN:         args[0],
		Orientation: renderOrientation,
		SquareSize:  renderSquareSize,
		Margin:      renderMargin,
		Arrow:       renderArrow,
		Highlight:   renderHighlight,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(renderOut, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", renderOut, err)
	}
	cmd.Printf("wrote %s (%d bytes)\n", renderOut, len(png))
	return nil
}

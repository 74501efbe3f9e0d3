package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vbonduro/boardgamer/internal/client"
	"github.com/vbonduro/boardgamer/internal/config"
	"github.com/vbonduro/boardgamer/internal/domain"
	"github.com/vbonduro/boardgamer/internal/logging"
)

const recommendLongDesc = `Identify the games in a shelf photo and stream recommendations.

Player counts: ` + "1-9, 10+" + `
Playing times: "Quick (< 30 mins)", "Short (30-60 mins)", "Medium (1-2 hours)",
               "Long (2-4 hours)", "Super Long (4+ hours)"

Examples:
  boardgamer recommend --image shelf.jpg --players 4 --time "Medium (1-2 hours)"
  boardgamer recommend -i shelf.png -p 2 -t "Quick (< 30 mins)" --raw`

type recommendCommander struct {
	imagePath   string
	playerCount string
	playingTime string
	serverURL   string
	raw         bool
	verbose     bool
}

func newRecommendCmd() *cobra.Command {
	cmder := &recommendCommander{}

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Get recommendations for a shelf photo",
		Long:  recommendLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.imagePath, "image", "i", "", "Path to the shelf photo")
	cmd.Flags().StringVarP(&cmder.playerCount, "players", "p", "", "Number of players")
	cmd.Flags().StringVarP(&cmder.playingTime, "time", "t", "", "Playing time bucket")
	cmd.Flags().StringVar(&cmder.serverURL, "server", "", "Server URL (overrides SERVER_URL)")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print markdown as it streams instead of rendering it")
	cmd.Flags().BoolVarP(&cmder.verbose, "verbose", "v", false, "Log at the configured level instead of warn")

	return cmd
}

func (c *recommendCommander) run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := "warn"
	if c.verbose {
		level = cfg.Logging.Level
	}
	logger, cleanup, err := logging.New(level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	defer cleanup()

	serverURL := cfg.Client.ServerURL
	if c.serverURL != "" {
		serverURL = c.serverURL
	}

	dataURL, err := readDataURL(c.imagePath)
	if err != nil {
		return err
	}

	render := !c.raw && isTerminal(out)
	printed := 0
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
	}
	if !render {
		opts = append(opts, client.WithOnUpdate(func(output string, _ client.State) {
			if len(output) > printed {
				_, _ = io.WriteString(out, output[printed:])
				printed = len(output)
			}
		}))
	}
	session := client.New(serverURL, opts...)

	err = session.Run(ctx, client.Input{
		ImageDataURL: dataURL,
		PlayerCount:  c.playerCount,
		PlayingTime:  c.playingTime,
	})
	if err != nil {
		return fmt.Errorf("%s", client.UserMessage(err))
	}

	if games := session.Games(); len(games) > 0 && render {
		_, _ = fmt.Fprintf(out, "Found: %s\n", strings.Join(gameNames(games), ", "))
	}

	if !render {
		_, _ = io.WriteString(out, "\n")
		return nil
	}
	rendered, err := renderMarkdown(session.Output())
	if err != nil {
		logger.Warn("markdown rendering failed, printing raw output", "error", err)
	}
	_, _ = io.WriteString(out, rendered)
	return nil
}

// readDataURL loads an image file as a base64 data URL. An empty path yields
// an empty URL so the missing-image check reports it.
func readDataURL(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mime := http.DetectContentType(data)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}
	return rendered, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func gameNames(games []domain.IdentifiedGame) []string {
	req := domain.RecommendationRequest{IdentifiedCollection: games}
	return req.GameNames()
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/simulator"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveFiles    []string
	serveGenerate int
	serveGenSeed  int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local mock of the contest server",
	Long: `Run a local mock of the contest server with /select, /explore and /guess.

The built-in problems (probatio, primus) are always available. More can be
loaded from maze files or generated at random.

Examples:
  # Serve the built-in problems
  warren serve --addr :8000

  # Add a maze file and a random 12-room maze named random-12-7
  warren serve --problem-file maze.yml --generate 12 --seed 7`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8000", "Listen address")
	serveCmd.Flags().StringSliceVar(&serveFiles, "problem-file", nil, "Maze file to serve (repeatable)")
	serveCmd.Flags().IntVar(&serveGenerate, "generate", 0, "Also serve a random maze with this many rooms")
	serveCmd.Flags().Int64Var(&serveGenSeed, "seed", 1, "Seed for --generate")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	problems, err := serveProblems(serveFiles, serveGenerate, serveGenSeed)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         serveAddr,
		Handler:      simulator.NewServer(problems...).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	printer.Success("Mock contest server listening on %s\n", serveAddr)
	for _, p := range problems {
		printer.Info("  %s (%d rooms)\n", p.Name, len(p.Rooms))
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// serveProblems loads the extra problems served next to the built-ins.
func serveProblems(files []string, generate int, seed int64) ([]simulator.Problem, error) {
	var problems []simulator.Problem
	for _, f := range files {
		m, err := simulator.Load(f)
		if err != nil {
			return nil, printer.Error(
				"failed to load maze file",
				err.Error(),
				[]string{fmt.Sprintf("Check %s", f)},
			)
		}
		problems = append(problems, m.Problem())
	}
	if generate > 0 {
		problems = append(problems, simulator.Generate(generate, seed).Problem())
	}
	return problems, nil
}

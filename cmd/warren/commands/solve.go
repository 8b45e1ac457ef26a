package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/dyluth/warren/internal/client"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/engine"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/simulator"
	"github.com/dyluth/warren/pkg/maze"
	"github.com/spf13/cobra"
)

var (
	solveConfigPath string
	solveProblem    string
	solveRooms      int
	solveFile       string
	solveSimulate   bool
	solveAPIURL     string
	solveTeamID     string
	solveSession    string
	solveRedisURL   string
	solveBudget     int
	solveSeed       int64
	solveHealthAddr string
	solveOutput     string
	solveNoGuess    bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Explore a maze until its layout is known, then submit it",
	Long: `Explore a maze until the hypothesis graph is complete and unambiguous,
print the learned layout and submit it as a guess.

Configuration comes from warren.yml (or --config). Without a config file the
problem is described by flags.

Problem sources:
  contest server - --api-url and --team-id (or WARREN_API_URL, WARREN_TEAM_ID)
  maze file      - --file maze.yml, solved offline against the simulator
  built-in       - --simulate with --problem probatio|primus

Examples:
  # Solve the built-in test problem offline
  warren solve --simulate --problem probatio

  # Solve against the contest server, keeping the trace in Redis
  warren solve --problem primus --rooms 6 --api-url https://contest.example.com \
    --team-id abc --redis-url redis://localhost:6379 --session primus-1

  # Use warren.yml and save the map without submitting it
  warren solve --output map.json --no-guess`,
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVarP(&solveConfigPath, "config", "c", "", "Path to warren.yml (default: ./warren.yml when present)")
	solveCmd.Flags().StringVarP(&solveProblem, "problem", "p", "", "Problem name")
	solveCmd.Flags().IntVar(&solveRooms, "rooms", 0, "Number of rooms (inferred for offline problems)")
	solveCmd.Flags().StringVar(&solveFile, "file", "", "Maze file to solve offline")
	solveCmd.Flags().BoolVar(&solveSimulate, "simulate", false, "Solve the built-in problem offline")
	solveCmd.Flags().StringVar(&solveAPIURL, "api-url", "", "Contest server URL")
	solveCmd.Flags().StringVar(&solveTeamID, "team-id", "", "Contest team ID")
	solveCmd.Flags().StringVarP(&solveSession, "session", "s", "", "Session name (default: problem name plus a random suffix)")
	solveCmd.Flags().StringVar(&solveRedisURL, "redis-url", "", "Record the trace in Redis instead of memory")
	solveCmd.Flags().IntVar(&solveBudget, "budget", 0, "Query budget (0 = unlimited)")
	solveCmd.Flags().Int64Var(&solveSeed, "seed", 0, "Seed for random walks")
	solveCmd.Flags().StringVar(&solveHealthAddr, "health-addr", "", "Serve /healthz and /metrics on this address, e.g. :8080")
	solveCmd.Flags().StringVarP(&solveOutput, "output", "o", "", "Write the learned map as JSON to this file")
	solveCmd.Flags().BoolVar(&solveNoGuess, "no-guess", false, "Do not submit the learned map")

	rootCmd.AddCommand(solveCmd)
}

// guesser submits a map and reports whether it is correct.
type guesser interface {
	Guess(ctx context.Context, m *maze.Map) (bool, error)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var offline *simulator.Maze
	cfg, err := solveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Problem.Offline() {
		if offline, err = loadOffline(cfg.Problem); err != nil {
			return err
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var explorer engine.Explorer
	var g guesser
	if offline != nil {
		explorer, g = offline, offline
		printer.Step("Solving '%s' offline (%d rooms, session %s)\n", cfg.Problem.Name, cfg.Problem.Rooms, cfg.Session)
	} else {
		c := client.New(cfg.API.URL, cfg.API.TeamID, time.Duration(cfg.API.TimeoutSeconds)*time.Second)
		if err := c.Select(ctx, cfg.Problem.Name); err != nil {
			return printer.ErrorWithContext(
				"problem selection failed",
				err.Error(),
				map[string]string{"Problem": cfg.Problem.Name, "Server": cfg.API.URL},
				[]string{"Check the problem name and team ID"},
			)
		}
		explorer, g = c, c
		printer.Step("Solving '%s' on %s (%d rooms, session %s)\n", cfg.Problem.Name, cfg.API.URL, cfg.Problem.Rooms, cfg.Session)
	}

	healthAddr := solveHealthAddr
	if healthAddr == "" && cfg.Health != nil {
		healthAddr = cfg.Health.Addr
	}
	if healthAddr != "" {
		health := engine.NewHealthServer(store, healthAddr)
		if err := health.Start(); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		defer health.Shutdown(context.Background())
	}

	e := engine.New(explorer, store, engine.OptionsFromConfig(cfg))
	res, err := e.Run(ctx)
	if errors.Is(err, engine.ErrBudgetExhausted) {
		details := map[string]string{
			"Session":         cfg.Session,
			"Queries":         strconv.Itoa(res.Queries),
			"Iterations":      strconv.Itoa(res.Iterations),
			"Representatives": strconv.Itoa(res.Stats.Representatives),
			"Unknown doors":   strconv.Itoa(res.Snapshot.UnknownDoors()),
		}
		if res.Map != nil {
			printer.Warning("Best hypothesis so far (not confident):\n")
			printer.Solution(res.Map)
		}
		return printer.ErrorWithContext(
			"budget exhausted",
			err.Error(),
			details,
			[]string{
				"Raise explore.max_iterations or explore.query_budget",
				fmt.Sprintf("Continue from the recorded trace with --redis-url and --session %s", cfg.Session),
			},
		)
	}
	if err != nil {
		return fmt.Errorf("failed to solve: %w", err)
	}

	printer.Success("Solved '%s' in %d queries (%d iterations, %d observations)\n",
		cfg.Problem.Name, res.Queries, res.Iterations, res.Observations)
	printer.Solution(res.Map)

	if solveOutput != "" {
		if err := writeMap(solveOutput, res.Map); err != nil {
			return err
		}
		printer.Info("Map written to %s\n", solveOutput)
	}

	if solveNoGuess {
		return nil
	}
	correct, err := g.Guess(ctx, res.Map)
	if err != nil {
		return fmt.Errorf("failed to submit guess: %w", err)
	}
	if !correct {
		return printer.ErrorWithContext(
			"guess rejected",
			"The submitted map does not match the hidden maze.",
			map[string]string{"Session": cfg.Session},
			[]string{fmt.Sprintf("Inspect the trace: warren traces --session %s", cfg.Session)},
		)
	}
	printer.Success("Guess accepted\n")
	return nil
}

// solveConfig loads warren.yml when one is given or present, and otherwise
// builds the configuration from flags.
func solveConfig(cmd *cobra.Command) (*config.WarrenConfig, error) {
	path := solveConfigPath
	if path == "" && !cmd.Flags().Changed("problem") {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		}
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, printer.Error(
				"invalid configuration",
				err.Error(),
				[]string{fmt.Sprintf("Fix %s or describe the problem with flags", path)},
			)
		}
		if solveSession != "" {
			cfg.Session = solveSession
		}
		return cfg, nil
	}

	if solveProblem == "" && solveFile == "" {
		return nil, printer.Error(
			"no problem given",
			"Neither warren.yml nor --problem was found.",
			[]string{
				"Solve a built-in problem:\n  warren solve --simulate --problem probatio",
				fmt.Sprintf("Create %s in the current directory", config.DefaultFile),
			},
		)
	}

	cfg := &config.WarrenConfig{
		Version: "1.0",
		Session: solveSession,
		Problem: config.ProblemConfig{
			Name:     solveProblem,
			Rooms:    solveRooms,
			File:     solveFile,
			Simulate: solveSimulate,
		},
		Explore: &config.ExploreConfig{QueryBudget: solveBudget, Seed: solveSeed},
	}
	if solveAPIURL != "" || solveTeamID != "" {
		cfg.API = &config.APIConfig{URL: solveAPIURL, TeamID: solveTeamID}
	}
	if solveRedisURL != "" {
		cfg.Trace = &config.TraceConfig{Backend: "redis", RedisURL: solveRedisURL}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, printer.Error("invalid environment", err.Error(), nil)
	}

	if cfg.Problem.Offline() && cfg.Problem.Rooms == 0 {
		m, err := loadOffline(cfg.Problem)
		if err != nil {
			return nil, err
		}
		cfg.Problem.Rooms = m.RoomCount()
		if cfg.Problem.Name == "" {
			cfg.Problem.Name = m.Problem().Name
		}
	}
	if cfg.Session == "" {
		cfg.Session = defaultSession(cfg.Problem.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, printer.Error(
			"invalid problem description",
			err.Error(),
			[]string{"Run 'warren solve --help' for the available flags"},
		)
	}
	return cfg, nil
}

// loadOffline returns a fresh simulator maze for an offline problem.
func loadOffline(p config.ProblemConfig) (*simulator.Maze, error) {
	if p.File != "" {
		m, err := simulator.Load(p.File)
		if err != nil {
			return nil, printer.Error(
				"failed to load maze file",
				err.Error(),
				[]string{"Check the path and that the file describes rooms with label and connections"},
			)
		}
		return m, nil
	}
	m, err := simulator.Builtin(p.Name)
	if err != nil {
		return nil, printer.Error(
			fmt.Sprintf("unknown built-in problem '%s'", p.Name),
			err.Error(),
			[]string{fmt.Sprintf("Available: %v", simulator.BuiltinNames())},
		)
	}
	return m, nil
}

func writeMap(path string, m *maze.Map) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal map: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write map: %w", err)
	}
	return nil
}

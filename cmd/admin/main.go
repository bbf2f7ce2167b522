// The admin console drives the full drawing session from a terminal: manage
// entrants and prizes, then step a draw through generate, spin, stop, and
// clear. It coordinates with other surfaces only through the shared store.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/drawdeck/drawdeck/internal/config"
	"github.com/drawdeck/drawdeck/internal/prizes"
	"github.com/drawdeck/drawdeck/internal/session"
	"github.com/drawdeck/drawdeck/internal/setup"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := setup.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build core")
	}
	defer core.Close()

	fmt.Println("drawdeck admin console. Type 'help' for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		if err := dispatch(ctx, core, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func dispatch(ctx context.Context, core *setup.Core, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		printHelp()
		return nil

	case "entrants":
		return entrantCmd(ctx, core, fields[1:])

	case "prizes":
		return prizeCmd(ctx, core, fields[1:])

	case "select":
		if len(fields) != 2 {
			return fmt.Errorf("usage: select <prize-id>")
		}
		id, err := uuid.Parse(fields[1])
		if err != nil {
			return fmt.Errorf("invalid prize id: %w", err)
		}
		return core.Surface.SelectPrize(ctx, id)

	case "begin":
		state, err := core.Sessions.Current(ctx)
		if err != nil {
			return err
		}
		if state.SelectedPrizeID == nil {
			return fmt.Errorf("no prize selected")
		}
		staged, err := core.Surface.BeginDraw(ctx, *state.SelectedPrizeID)
		if err != nil {
			return err
		}
		fmt.Printf("generated %d winners\n", len(staged.PredeterminedWinners))
		return nil

	case "spin":
		return core.Surface.StartSpin(ctx)

	case "stop":
		return core.Surface.RequestStop(ctx)

	case "clear":
		return core.Surface.ClearResults(ctx)

	case "status":
		state, phase, err := core.Surface.Phase(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("phase=%s running=%v committed=%v owner=%s\n",
			phase, state.IsRunning, state.ResultsCommitted, state.OwnerSessionID)
		if err := core.Surface.CommitError(); err != nil {
			fmt.Println("last commit error:", err)
		}
		if session.IsDisplayingResults(state) {
			for _, w := range state.CommittedWinners {
				fmt.Printf("  winner: %s (%s)\n", w.EntrantName, w.PrizeName)
			}
		}
		return nil

	case "winners":
		records, err := core.Winners.List(ctx)
		if err != nil {
			return err
		}
		for _, w := range records {
			fmt.Printf("%s  %s  %s\n", w.WonAt.Format("15:04:05"), w.EntrantName, w.PrizeName)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q, try 'help'", fields[0])
	}
}

func entrantCmd(ctx context.Context, core *setup.Core, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: entrants add|list|remove|clear")
	}
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: entrants add <name>")
		}
		_, err := core.Entrants.Add(ctx, strings.Join(args[1:], " "))
		return err
	case "list":
		list, err := core.Entrants.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range list {
			fmt.Printf("%s  %s\n", e.ID, e.DisplayName)
		}
		return nil
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: entrants remove <id>")
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid entrant id: %w", err)
		}
		return core.Entrants.Remove(ctx, id)
	case "clear":
		return core.Entrants.Clear(ctx)
	default:
		return fmt.Errorf("unknown entrants command %q", args[0])
	}
}

func prizeCmd(ctx context.Context, core *setup.Core, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: prizes add|list|delete")
	}
	switch args[0] {
	case "add":
		if len(args) < 3 {
			return fmt.Errorf("usage: prizes add <quota> <name>")
		}
		quota, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quota: %w", err)
		}
		prize, err := core.Prizes.Create(ctx, prizes.CreatePrizeRequest{
			Name:  strings.Join(args[2:], " "),
			Quota: quota,
		})
		if err != nil {
			return err
		}
		fmt.Println("created prize", prize.ID)
		return nil
	case "list":
		list, err := core.Prizes.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range list {
			fmt.Printf("%s  %s  %d/%d remaining\n", p.ID, p.Name, p.RemainingQuota, p.Quota)
		}
		return nil
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: prizes delete <id>")
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid prize id: %w", err)
		}
		return core.Prizes.Delete(ctx, id)
	default:
		return fmt.Errorf("unknown prizes command %q", args[0])
	}
}

func printHelp() {
	fmt.Println(`commands:
  entrants add <name> | list | remove <id> | clear
  prizes add <quota> <name> | list | delete <id>
  select <prize-id>
  begin | spin | stop | clear
  status | winners | quit`)
}

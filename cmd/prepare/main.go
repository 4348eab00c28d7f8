// Command prepare loads an event file and racer roster and resets the derby
// to race 1 with a fresh round 1 lineup.
//
// With -console the reset is sent to a running server, whose displays pick
// up the new board at once. Without it the store is written directly, and a
// server already running keeps its cached board until its next change.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/derby-console/internal/config"
	"github.com/DoyleJ11/derby-console/internal/derby"
	"github.com/DoyleJ11/derby-console/internal/logger"
	"github.com/DoyleJ11/derby-console/internal/roster"
	"github.com/DoyleJ11/derby-console/internal/store"
	"github.com/DoyleJ11/derby-console/internal/types"
)

func main() {
	eventPath := flag.String("event", "event.yaml", "event definition (YAML)")
	racersPath := flag.String("racers", "racers.csv", "racer roster (CSV)")
	lanes := flag.Int("lanes", 0, "lanes enabled; overrides the event file")
	heats := flag.Int("heats", -1, "heats per round; 0 derives it, overrides the event file")
	consoleURL := flag.String("console", "", "base URL of a running server, e.g. http://localhost:8080")
	flag.Parse()

	if err := run(*eventPath, *racersPath, *consoleURL, *lanes, *heats); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(eventPath, racersPath, consoleURL string, lanes, heats int) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ev, r, err := roster.Load(eventPath, racersPath)
	if err != nil {
		return err
	}
	if lanes == 0 {
		lanes = ev.Lanes
	}
	if heats < 0 {
		heats = ev.HeatsPerRound
	}

	if consoleURL != "" {
		board, err := prepareRemote(context.Background(), consoleURL, types.NewPrepareRequest(r, lanes, heats))
		if err != nil {
			return err
		}
		logReady(log, board.Board.Status)
		return nil
	}

	st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	d := derby.New(st, log, derby.WithDNFTime(cfg.DNFTime))
	if err := d.Prepare(context.Background(), r, lanes, heats); err != nil {
		return err
	}

	status, err := d.Status(context.Background())
	if err != nil {
		return err
	}
	logReady(log, status)
	return nil
}

func logReady(log *zap.Logger, status derby.Status) {
	log.Info("ready to race",
		zap.String("derby", status.Name),
		zap.Int("lanes", status.LanesEnabled),
		zap.Int("heats_per_round", status.HeatsPerRound),
		zap.Stringer("current", status.Current))
}

// prepareRemote posts the reset to a running server's console.
func prepareRemote(ctx context.Context, baseURL string, req types.PrepareRequest) (types.BoardResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return types.BoardResponse{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := strings.TrimSuffix(baseURL, "/") + "/api/prepare"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.BoardResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return types.BoardResponse{}, fmt.Errorf("prepare via %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e types.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return types.BoardResponse{}, fmt.Errorf("prepare via %s: %s: %s", url, resp.Status, e.Error)
	}
	var board types.BoardResponse
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return types.BoardResponse{}, fmt.Errorf("decode board: %w", err)
	}
	return board, nil
}

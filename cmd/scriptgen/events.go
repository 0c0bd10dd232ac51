package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"scriptgen/internal/domain"
	"scriptgen/internal/infra"
	"scriptgen/internal/progress"
	"scriptgen/internal/storage"
)

// consoleEvents renders orchestrator events for a terminal user and writes
// the completed script artifact to the output directory.
type consoleEvents struct {
	logger *infra.Logger
	files  *storage.FileStore
	phases []progress.Phase
}

func (e *consoleEvents) PhaseChanged(idx int) {
	name := "working"
	if idx >= 0 && idx < len(e.phases) {
		name = e.phases[idx].Name
	}
	e.logger.Info().Int("phase", idx).Str("name", name).Msg("generation progress")
}

func (e *consoleEvents) Completed(result json.RawMessage) {
	path, err := e.files.WriteResult(context.Background(), time.Now().Format("20060102-150405"), result)
	if err != nil {
		e.logger.Error().Err(err).Msg("generation completed but the script could not be written")
		return
	}
	e.logger.Info().Str("path", path).Msg("script written")
}

func (e *consoleEvents) Failed(err error) {
	var credit *domain.CreditError
	if errors.As(err, &credit) {
		e.logger.Error().
			Int("required", credit.Required).
			Int("available", credit.Available).
			Int("shortfall", credit.Shortfall).
			Int("percent_available", credit.PercentageAvailable).
			Msg("insufficient credits: top up your balance and run generate again")
		return
	}
	var timeout *domain.TimeoutError
	if errors.As(err, &timeout) {
		e.logger.Error().Msg("generation timed out without a result from the service; try again")
		return
	}
	e.logger.Error().Err(err).Msg("generation failed")
}

package feeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Trial is the record of one dispense and, optionally, its retrieval
type Trial struct {
	Started time.Time

	Failed        bool
	DispenseDelay uint16 // ms
	Attempts      uint8

	Retrieved      bool
	RetrievalDelay uint16 // ms
}

// RunTrial dispenses one pellet and waits for the outcome. When
// waitRetrieval is set it also waits for the reward to be taken. A
// retrieval that does not happen within the stall timeout returns the
// trial with Retrieved false and an error wrapping ErrLinkStalled: the
// feeder keeps waiting for the retrieval and takes no new dispense until
// it happens.
func (c *Client) RunTrial(ctx context.Context, waitRetrieval bool) (Trial, error) {
	trial := Trial{Started: time.Now()}

	if err := c.DispensePellet(ctx); err != nil {
		return trial, err
	}

	outcome, err := c.DispenseDelay(ctx)
	if err != nil {
		return trial, err
	}
	trial.Failed = outcome.Failed
	trial.DispenseDelay = outcome.Delay

	if trial.Attempts, err = c.DispenseAttempts(ctx); err != nil {
		return trial, err
	}

	log := c.log.With(zap.Uint8("attempts", trial.Attempts))
	if trial.Failed {
		log.Warn("dispense failed")
		return trial, nil
	}
	log.Info("pellet dispensed", zap.Uint16("delay_ms", trial.DispenseDelay))

	if !waitRetrieval {
		return trial, nil
	}

	delay, err := c.RetrievalDelay(ctx)
	switch {
	case errors.Is(err, ErrTimeout):
		log.Warn("pellet not retrieved")
		return trial, fmt.Errorf("%w: %w", ErrLinkStalled, err)
	case err != nil:
		return trial, err
	}
	trial.Retrieved = true
	trial.RetrievalDelay = delay
	log.Info("pellet retrieved", zap.Uint16("retrieval_ms", delay))
	return trial, nil
}

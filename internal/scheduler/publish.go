package scheduler

import (
	"context"
	"time"
)

// DefaultPublishDelay is the wait the publishing backend requires between
// container creation and finalization.
const DefaultPublishDelay = 3 * time.Second

// publisher runs the container, delay, finalize sequence.
type publisher struct {
	backend PublishingBackend
	delay   time.Duration
	sleep   SleepFunc
}

func (p publisher) publish(ctx context.Context, text, accessToken string) (string, error) {
	containerID, err := p.backend.CreateContainer(ctx, text, accessToken)
	if err != nil {
		return "", err
	}
	if err := p.sleep(ctx, p.delay); err != nil {
		return "", err
	}
	return p.backend.Finalize(ctx, containerID, accessToken)
}

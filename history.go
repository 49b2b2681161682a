package ring

import (
	"context"
	"time"
)

// GetDoorbotsHistory returns the ding and motion events recorded by the
// account's doorbots, in the order the API returns them.
func (c *Client) GetDoorbotsHistory(ctx context.Context) ([]DoorbotHistoryEvent, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := c.transport.getContents(ctx, c.takeOverride(OperationHistory), endpoint("doorbots/history", token), nil, 0)
	if err != nil {
		c.LogOperation(ctx, OperationHistory, time.Since(start), err)
		return nil, err
	}

	events, err := unmarshalResponse[[]DoorbotHistoryEvent]([]byte(data), "doorbot history")
	c.LogOperation(ctx, OperationHistory, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return *events, nil
}

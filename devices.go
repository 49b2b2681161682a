package ring

import (
	"context"
	"time"
)

// GetRingDevices returns all devices registered under the authenticated account.
func (c *Client) GetRingDevices(ctx context.Context) (*Devices, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := c.transport.getContents(ctx, c.takeOverride(OperationDevices), endpoint("ring_devices", token), nil, 0)
	if err != nil {
		c.LogOperation(ctx, OperationDevices, time.Since(start), err)
		return nil, err
	}

	devices, err := unmarshalResponse[Devices]([]byte(data), "devices")
	c.LogOperation(ctx, OperationDevices, time.Since(start), err)
	return devices, err
}

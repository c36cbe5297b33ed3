package musiccast

import (
	"context"
	"net/url"
	"strconv"
)

const (
	OpGetDeviceInfo Operation = "system/getDeviceInfo"
	OpGetFeatures   Operation = "system/getFeatures"
	OpGetYpaoConfig Operation = "system/getYpaoConfig"
	OpSetYpaoVolume Operation = "system/setYpaoVolume"
)

// GetDeviceInfo fetches the identity descriptor of a device.
func (c *Client) GetDeviceInfo(ctx context.Context, address string) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.Call(ctx, address, OpGetDeviceInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetFeatures fetches the capability manifest of a device.
func (c *Client) GetFeatures(ctx context.Context, address string) (*Features, error) {
	var f Features
	if err := c.Call(ctx, address, OpGetFeatures, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetYpaoConfig fetches the room calibration settings.
func (c *Client) GetYpaoConfig(ctx context.Context, address string) (*YpaoConfig, error) {
	var cfg YpaoConfig
	if err := c.Call(ctx, address, OpGetYpaoConfig, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetYpaoVolume enables or disables YPAO volume.
func (c *Client) SetYpaoVolume(ctx context.Context, address string, enabled bool) error {
	return c.Call(ctx, address, OpSetYpaoVolume, url.Values{"enable": {strconv.FormatBool(enabled)}}, nil)
}

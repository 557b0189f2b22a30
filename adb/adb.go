package adb

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"androidmirror/models"

	"github.com/rs/zerolog"
)

// deviceIDPattern accepts USB serials, host:port addresses and mDNS names
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:\-]+$`)

// ValidateDeviceID rejects ids that could not have come from `adb devices`
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if len(deviceID) > 256 {
		return fmt.Errorf("device ID too long (max 256 characters)")
	}
	if !deviceIDPattern.MatchString(deviceID) {
		return fmt.Errorf("invalid device ID %q", deviceID)
	}
	return nil
}

// ADBClient wraps adb command execution
type ADBClient struct {
	ADBPath string
	Env     map[string]string

	runner Runner
	parser *Parser
	logger zerolog.Logger
}

// NewADBClient creates a client that runs adbPath through runner
func NewADBClient(runner Runner, adbPath string, logger zerolog.Logger) *ADBClient {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &ADBClient{
		ADBPath: adbPath,
		Env:     map[string]string{},
		runner:  runner,
		parser:  NewParser(logger),
		logger:  logger,
	}
}

// DevicesArgs are the arguments of the device enumeration command
func DevicesArgs() []string {
	return []string{"devices", "-l"}
}

// PackagesArgs are the arguments listing enabled packages on one device
func PackagesArgs(deviceID string) []string {
	return []string{"-s", deviceID, "shell", "pm", "list", "packages", "-e"}
}

// ListDevices runs `adb devices -l` and parses the result.
// Any execution failure, including a non-zero exit, is returned.
func (c *ADBClient) ListDevices(ctx context.Context) ([]models.Device, error) {
	res, err := c.runner.Run(ctx, Invocation{Name: c.ADBPath, Args: DevicesArgs(), Env: c.Env})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	devices := c.parser.ParseDevices(string(res.Stdout))
	c.logger.Debug().Int("count", len(devices)).Msg("Parsed device list")
	return devices, nil
}

// ListPackages returns the enabled packages installed on a device
func (c *ADBClient) ListPackages(ctx context.Context, deviceID string) ([]models.Application, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	res, err := c.runner.Run(ctx, Invocation{Name: c.ADBPath, Args: PackagesArgs(deviceID), Env: c.Env})
	if err != nil {
		return nil, fmt.Errorf("failed to list packages on %s: %w", deviceID, err)
	}
	return c.parser.ParsePackages(string(res.Stdout)), nil
}

// CommandLine renders an adb invocation, used for logging and fakes
func CommandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

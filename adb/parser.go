package adb

import (
	"regexp"
	"strings"

	"androidmirror/models"

	"github.com/rs/zerolog"
)

const (
	devicesBanner = "List of devices attached"
	modelPrefix   = "model:"
	packagePrefix = "package:"
)

// attributeKeyPattern matches the key of a `key:value` device property. Free
// text adb appends to some states (URLs, hints) is not a property.
var attributeKeyPattern = regexp.MustCompile(`^[a-z_]+$`)

// Parser turns adb text output into records. It never fails: lines it cannot
// use are dropped and reported at debug level.
type Parser struct {
	logger zerolog.Logger
}

func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseDevices parses the output of `adb devices -l`
func ParseDevices(output string) []models.Device {
	return (&Parser{logger: zerolog.Nop()}).ParseDevices(output)
}

// ParsePackages parses the output of `pm list packages`
func ParsePackages(output string) []models.Application {
	return (&Parser{logger: zerolog.Nop()}).ParsePackages(output)
}

// ParseDevices parses the output of `adb devices -l`.
// Expected line format: <serial> <state> [key:value ...]
func (p *Parser) ParseDevices(output string) []models.Device {
	devices := []models.Device{}

	for _, line := range splitLines(output) {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, devicesBanner) {
			continue
		}
		// adb prints daemon start-up chatter on stdout
		if strings.HasPrefix(line, "*") {
			p.logger.Debug().Str("line", line).Msg("Dropping adb daemon message")
			continue
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			p.logger.Debug().Str("line", line).Msg("Dropping device line without id")
			continue
		}

		id := parts[0]
		device := models.Device{
			ID:           id,
			DisplayName:  id,
			Connection:   ClassifyConnection(id),
			Applications: []models.Application{},
		}

		modelSeen := false
		for i, part := range parts[1:] {
			key, value, ok := strings.Cut(part, ":")
			if !ok {
				if i == 0 {
					device.State = deviceState(parts)
				}
				continue
			}
			if !attributeKeyPattern.MatchString(key) {
				p.logger.Debug().Str("token", part).Msg("Dropping device token that is not a property")
				continue
			}
			if strings.HasPrefix(part, modelPrefix) {
				if !modelSeen && value != "" {
					device.DisplayName = value
				}
				modelSeen = true
				continue
			}
			if device.Attributes == nil {
				device.Attributes = make(map[string]string)
			}
			device.Attributes[key] = value
		}

		devices = append(devices, device)
	}

	return devices
}

// deviceState reads the state column. adb reports a missing udev permission
// as the two words "no permissions" followed by free text.
func deviceState(parts []string) string {
	if parts[1] == "no" && len(parts) > 2 && strings.HasPrefix(parts[2], "permissions") {
		return "no permissions"
	}
	return parts[1]
}

// ParsePackages parses the output of `pm list packages`, keeping output order
func (p *Parser) ParsePackages(output string) []models.Application {
	apps := []models.Application{}

	for _, line := range splitLines(output) {
		if !strings.HasPrefix(line, packagePrefix) {
			if line != "" {
				p.logger.Debug().Str("line", line).Msg("Dropping non-package line")
			}
			continue
		}
		packageID := strings.TrimSpace(strings.TrimPrefix(line, packagePrefix))
		if packageID == "" {
			continue
		}
		apps = append(apps, models.Application{PackageID: packageID})
	}

	return apps
}

// ClassifyConnection reports network for host:port and mDNS ids, usb otherwise
func ClassifyConnection(id string) models.ConnectionKind {
	if strings.Contains(id, ":") || strings.Contains(id, "_tcp") {
		return models.ConnectionNetwork
	}
	return models.ConnectionUSB
}

func splitLines(output string) []string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}

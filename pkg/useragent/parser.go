// Package useragent classifies visitor user-agent strings into the device,
// browser and OS fields recorded on click events.
package useragent

import (
	"os"
	"strings"
	"sync"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// Device type values recorded on click events.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// DeviceInfo is the classification derived from a raw user-agent string.
type DeviceInfo struct {
	DeviceType string
	Browser    string
	OS         string
}

// Parser wraps the uap-go regex parser.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

var (
	globalParser *Parser
	once         sync.Once
)

// NewParser builds a parser from a regex definitions file when one is
// configured and present, otherwise from the definitions compiled into uap-go.
func NewParser(regexFilePath string, log *zap.Logger) *Parser {
	if regexFilePath != "" {
		if _, err := os.Stat(regexFilePath); err == nil {
			if p, err := uaparser.New(regexFilePath); err == nil {
				log.Info("user-agent parser initialized from file", zap.String("regexes_file", regexFilePath))
				return &Parser{parser: p, log: log}
			}
			log.Warn("failed to load user-agent regexes file, using built-in definitions",
				zap.String("regexes_file", regexFilePath))
		}
	}

	return &Parser{parser: uaparser.NewFromSaved(), log: log}
}

// InitGlobal initializes the process-wide parser. Subsequent calls are no-ops.
func InitGlobal(regexFilePath string, log *zap.Logger) {
	once.Do(func() {
		globalParser = NewParser(regexFilePath, log)
	})
}

// Global returns the process-wide parser, or nil when InitGlobal was never called.
func Global() *Parser {
	return globalParser
}

// Parse classifies a raw user-agent string. Empty input yields all-unknown.
func (p *Parser) Parse(userAgent string) DeviceInfo {
	if userAgent == "" {
		return DeviceInfo{DeviceType: DeviceUnknown, Browser: DeviceUnknown, OS: DeviceUnknown}
	}

	client := p.parser.Parse(userAgent)

	info := DeviceInfo{
		DeviceType: deviceTypeFor(client, userAgent),
		Browser:    orUnknown(client.UserAgent.Family),
		OS:         orUnknown(client.Os.Family),
	}

	p.log.Debug("parsed user-agent",
		zap.String("device_type", info.DeviceType),
		zap.String("browser", info.Browser),
		zap.String("os", info.OS))

	return info
}

// deviceTypeFor maps parsed client info onto the four recorded device types.
func deviceTypeFor(client *uaparser.Client, userAgent string) string {
	device := strings.ToLower(client.Device.Family)
	osFamily := strings.ToLower(client.Os.Family)

	switch {
	case strings.Contains(device, "ipad"), strings.Contains(device, "tablet"),
		strings.Contains(device, "kindle"):
		return DeviceTablet
	case strings.Contains(device, "iphone"), strings.Contains(device, "phone"):
		return DeviceMobile
	}

	switch {
	case strings.Contains(osFamily, "ios"):
		if strings.Contains(strings.ToLower(userAgent), "ipad") {
			return DeviceTablet
		}
		return DeviceMobile
	case strings.Contains(osFamily, "android"):
		// Android tablets omit "Mobile" from the user-agent.
		if !strings.Contains(strings.ToLower(userAgent), "mobile") {
			return DeviceTablet
		}
		return DeviceMobile
	case strings.Contains(osFamily, "windows"), strings.Contains(osFamily, "mac"),
		strings.Contains(osFamily, "linux"), strings.Contains(osFamily, "ubuntu"),
		strings.Contains(osFamily, "chrome os"):
		return DeviceDesktop
	}

	return DetectDeviceType(userAgent)
}

// DetectDeviceType is the keyword fallback used when no regex parser is
// available: mobile keywords win over tablet keywords, anything else with a
// non-empty user-agent counts as desktop.
func DetectDeviceType(userAgent string) string {
	if userAgent == "" {
		return DeviceUnknown
	}

	ua := strings.ToLower(userAgent)

	for _, kw := range []string{"mobile", "android", "iphone", "ipod", "blackberry", "windows phone"} {
		if strings.Contains(ua, kw) {
			return DeviceMobile
		}
	}
	for _, kw := range []string{"tablet", "ipad", "kindle", "silk"} {
		if strings.Contains(ua, kw) {
			return DeviceTablet
		}
	}

	return DeviceDesktop
}

func orUnknown(s string) string {
	if s == "" || s == "Other" {
		return DeviceUnknown
	}
	return s
}

package reconcile

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/vmaxx/repetier-go/tool"
	"github.com/vmaxx/repetier-go/types"
)

// HandleConfig reconciles the getPrinterConfig response, fetched once per
// connection: SD-card support and the webcam descriptor. Both the legacy
// single-webcam and the newer multi-webcam shapes are supported, the
// multi-webcam one taking precedence.
func (r *Reconciler) HandleConfig(statusCode int, body []byte) {
	if statusCode != http.StatusOK {
		return
	}

	var config types.ServerConfig
	if len(body) > 0 {
		if err := sonic.Unmarshal(body, &config); err != nil {
			tool.DefaultLogger.Warnf("Received invalid JSON from Repetier instance.")
			config = types.ServerConfig{}
		}
	}

	if config.General != nil && config.General.SDCard != nil {
		r.sdSupported = *config.General.SDCard
		if r.printer != nil {
			r.printer.SDSupported = r.sdSupported
		}
	}

	var dynamicURL *string
	switch {
	case len(config.Webcams) > 0 && config.Webcams[0].DynamicURL != nil:
		dynamicURL = config.Webcams[0].DynamicURL
	case config.Webcam != nil && config.Webcam.DynamicURL != nil:
		dynamicURL = config.Webcam.DynamicURL
	}
	if dynamicURL == nil {
		return
	}

	streamURL, sharesProxy := ResolveCameraURL(*dynamicURL, r.endpoint.Protocol, r.endpoint.Address, r.endpoint.Port)
	if streamURL == "" && *dynamicURL != "" {
		tool.DefaultLogger.Warnf("Unusable stream url received: %s", *dynamicURL)
	}
	rotation := 0
	if r.prefs != nil && r.prefs.WebcamFlipY() {
		rotation = 180
	}
	camera := types.Camera{
		StreamURL:   streamURL,
		Mirror:      false,
		Rotation:    rotation,
		SharesProxy: sharesProxy,
	}
	changed := camera != r.camera
	r.camera = camera
	tool.DefaultLogger.Debugf("Set Repetier camera url to %s", streamURL)

	if streamURL != "" && r.printer != nil {
		cam := camera
		r.printer.Camera = &cam
	}
	if changed && r.onCameraOrientation != nil {
		r.onCameraOrientation(camera)
	}
}

// ResolveCameraURL turns the configured webcam stream URL into an absolute
// URL, or an empty string when the camera is unusable. The loopback address
// is first replaced by the real instance address; a URL relative to the
// instance's own host and port marks the stream as shared with the transport
// proxy. Pure function.
func ResolveCameraURL(streamURL, protocol, address string, port int) (resolved string, sharesProxy bool) {
	streamURL = strings.ReplaceAll(streamURL, "127.0.0.1", address)
	// An address-prefixed URL without a scheme is relative to the instance
	// host; strip the host and fall through to the relative rules.
	if address != "" && strings.HasPrefix(streamURL, address) {
		streamURL = strings.TrimPrefix(streamURL, address)
	}
	switch {
	case streamURL == "":
		return "", false
	case strings.HasPrefix(strings.ToLower(streamURL), "http"):
		return streamURL, false
	case strings.HasPrefix(streamURL, "//"):
		return protocol + ":" + streamURL, false
	case strings.HasPrefix(streamURL, ":"):
		return fmt.Sprintf("%s://%s%s", protocol, address, streamURL), false
	case strings.HasPrefix(streamURL, "/"):
		return fmt.Sprintf("%s://%s:%d%s", protocol, address, port, streamURL), true
	default:
		return "", false
	}
}

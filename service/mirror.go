package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"androidmirror/adb"
	"androidmirror/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const windowTitle = "Android Mirroring"

var supportedCodecs = map[string]bool{"h264": true, "h265": true, "av1": true}

// ValidateMirrorSettings checks values before they are stored or used
func ValidateMirrorSettings(s models.MirrorSettings) error {
	if !supportedCodecs[s.Codec] {
		return fmt.Errorf("unsupported codec %q (want h264, h265 or av1)", s.Codec)
	}
	if s.MaxFPS < 1 || s.MaxFPS > 240 {
		return fmt.Errorf("max fps must be between 1 and 240, got %d", s.MaxFPS)
	}
	if s.ResolutionX < 1 || s.ResolutionX > 8192 || s.ResolutionY < 1 || s.ResolutionY > 8192 {
		return fmt.Errorf("invalid resolution %dx%d", s.ResolutionX, s.ResolutionY)
	}
	return nil
}

// commonArgs maps the enabled options to scrcpy flags
func commonArgs(s models.MirrorSettings) []string {
	args := []string{
		"--window-title=" + windowTitle,
		fmt.Sprintf("--max-fps=%d", s.MaxFPS),
		"--video-codec=" + s.Codec,
	}
	if !s.AudioEnabled {
		args = append(args, "--no-audio")
	}
	if s.ForwardAllClicks {
		args = append(args, "--mouse-bind=++++")
	}
	if s.GamepadPassthrough {
		args = append(args, "--gamepad=uhid")
	} else {
		args = append(args, "--gamepad=disabled")
	}
	if s.AlwaysOnTop {
		args = append(args, "--always-on-top")
	}
	if s.Fullscreen {
		args = append(args, "--fullscreen")
	}
	return args
}

// BuildScreenArgs returns the scrcpy arguments mirroring a whole device
func BuildScreenArgs(s models.MirrorSettings, deviceID string) []string {
	return append([]string{"-s", deviceID}, commonArgs(s)...)
}

// BuildAppArgs returns the scrcpy arguments mirroring one application on a
// new virtual display
func BuildAppArgs(s models.MirrorSettings, deviceID, packageID string) []string {
	args := []string{"-s", deviceID, "--start-app=" + packageID}
	args = append(args, commonArgs(s)...)
	args = append(args, fmt.Sprintf("--new-display=%dx%d", s.ResolutionX, s.ResolutionY))
	if s.MoveAppToMainDisplay {
		args = append(args, "--no-vd-destroy-content")
	}
	return append(args, "--no-vd-system-decorations")
}

// SettingsSource supplies the current mirroring preferences
type SettingsSource interface {
	Load(ctx context.Context) (models.MirrorSettings, error)
}

// MirrorSession is a running scrcpy process
type MirrorSession struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	PackageID string    `json:"package_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// MirrorLauncher starts scrcpy for devices and applications present in the
// current catalog.
type MirrorLauncher struct {
	// Env is passed to scrcpy; ADB points it at the resolved adb binary
	Env map[string]string

	runner     adb.Runner
	scrcpyPath string
	manager    *DeviceManager
	settings   SettingsSource
	logger     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*mirrorSession
}

type mirrorSession struct {
	MirrorSession
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMirrorLauncher(runner adb.Runner, scrcpyPath string, manager *DeviceManager, settings SettingsSource, logger zerolog.Logger) *MirrorLauncher {
	if scrcpyPath == "" {
		scrcpyPath = "scrcpy"
	}
	return &MirrorLauncher{
		runner:     runner,
		scrcpyPath: scrcpyPath,
		Env:        map[string]string{},
		manager:    manager,
		settings:   settings,
		logger:     logger,
		sessions:   make(map[string]*mirrorSession),
	}
}

// ScreenInvocation resolves the device and builds the scrcpy invocation
func (l *MirrorLauncher) ScreenInvocation(ctx context.Context, deviceID string) (adb.Invocation, error) {
	if _, err := l.manager.GetDevice(deviceID); err != nil {
		return adb.Invocation{}, err
	}
	s, err := l.loadSettings(ctx)
	if err != nil {
		return adb.Invocation{}, err
	}
	return l.invocation(BuildScreenArgs(s, deviceID)), nil
}

// AppInvocation resolves the device and package and builds the scrcpy invocation
func (l *MirrorLauncher) AppInvocation(ctx context.Context, deviceID, packageID string) (adb.Invocation, error) {
	if _, err := l.manager.GetApplication(deviceID, packageID); err != nil {
		return adb.Invocation{}, err
	}
	s, err := l.loadSettings(ctx)
	if err != nil {
		return adb.Invocation{}, err
	}
	return l.invocation(BuildAppArgs(s, deviceID, packageID)), nil
}

// Run launches scrcpy and blocks until it exits
func (l *MirrorLauncher) Run(ctx context.Context, inv adb.Invocation) error {
	_, err := l.runner.Run(ctx, inv)
	if err != nil {
		return fmt.Errorf("scrcpy failed: %w", err)
	}
	return nil
}

// Start launches scrcpy in the background and tracks it as a session
func (l *MirrorLauncher) Start(inv adb.Invocation, deviceID, packageID string) MirrorSession {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &mirrorSession{
		MirrorSession: MirrorSession{
			ID:        uuid.NewString(),
			DeviceID:  deviceID,
			PackageID: packageID,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	l.mu.Lock()
	l.sessions[sess.ID] = sess
	l.mu.Unlock()

	l.logger.Info().
		Str("session", sess.ID).
		Str("device", deviceID).
		Str("package", packageID).
		Msg("Starting mirroring session")

	go func() {
		defer close(sess.done)
		defer cancel()

		err := l.Run(ctx, inv)

		l.mu.Lock()
		delete(l.sessions, sess.ID)
		l.mu.Unlock()

		if err != nil && !adb.IsKind(err, adb.ErrKindCanceled) {
			l.logger.Warn().Err(err).Str("session", sess.ID).Msg("Mirroring session ended with error")
			return
		}
		l.logger.Info().Str("session", sess.ID).Msg("Mirroring session ended")
	}()

	return sess.MirrorSession
}

// Stop terminates a running session
func (l *MirrorLauncher) Stop(sessionID string) bool {
	l.mu.Lock()
	sess, ok := l.sessions[sessionID]
	l.mu.Unlock()
	if !ok {
		return false
	}
	sess.cancel()
	<-sess.done
	return true
}

// StopAll terminates every running session
func (l *MirrorLauncher) StopAll() {
	for _, s := range l.Sessions() {
		l.Stop(s.ID)
	}
}

// Sessions lists running sessions, oldest first
func (l *MirrorLauncher) Sessions() []MirrorSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MirrorSession, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, s.MirrorSession)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (l *MirrorLauncher) invocation(args []string) adb.Invocation {
	// a mirroring window lives as long as the user keeps it open
	return adb.Invocation{Name: l.scrcpyPath, Args: args, Env: l.Env, Timeout: -1}
}

func (l *MirrorLauncher) loadSettings(ctx context.Context) (models.MirrorSettings, error) {
	if l.settings == nil {
		return models.DefaultMirrorSettings(), nil
	}
	s, err := l.settings.Load(ctx)
	if err != nil {
		return models.MirrorSettings{}, fmt.Errorf("failed to load mirror settings: %w", err)
	}
	return s, nil
}

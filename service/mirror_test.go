package service

import (
	"context"
	"testing"
	"time"

	"androidmirror/adb"
	"androidmirror/adb/adbtest"
	"androidmirror/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScreenArgs_Defaults(t *testing.T) {
	args := BuildScreenArgs(models.DefaultMirrorSettings(), "R58M1")

	assert.Equal(t, []string{
		"-s", "R58M1",
		"--window-title=Android Mirroring",
		"--max-fps=60",
		"--video-codec=h264",
		"--mouse-bind=++++",
		"--gamepad=disabled",
	}, args)
}

func TestBuildScreenArgs_AllToggles(t *testing.T) {
	s := models.MirrorSettings{
		ResolutionX:        1280,
		ResolutionY:        720,
		MaxFPS:             30,
		Codec:              "h265",
		AudioEnabled:       false,
		GamepadPassthrough: true,
		AlwaysOnTop:        true,
		Fullscreen:         true,
	}

	args := BuildScreenArgs(s, "192.168.1.5:5555")

	assert.Equal(t, []string{
		"-s", "192.168.1.5:5555",
		"--window-title=Android Mirroring",
		"--max-fps=30",
		"--video-codec=h265",
		"--no-audio",
		"--gamepad=uhid",
		"--always-on-top",
		"--fullscreen",
	}, args)
}

func TestBuildAppArgs(t *testing.T) {
	s := models.DefaultMirrorSettings()
	s.MoveAppToMainDisplay = true

	args := BuildAppArgs(s, "R58M1", "com.example.app")

	assert.Equal(t, []string{
		"-s", "R58M1",
		"--start-app=com.example.app",
		"--window-title=Android Mirroring",
		"--max-fps=60",
		"--video-codec=h264",
		"--mouse-bind=++++",
		"--gamepad=disabled",
		"--new-display=1920x1080",
		"--no-vd-destroy-content",
		"--no-vd-system-decorations",
	}, args)
}

func TestValidateMirrorSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.MirrorSettings)
		wantErr bool
	}{
		{"defaults", func(*models.MirrorSettings) {}, false},
		{"av1", func(s *models.MirrorSettings) { s.Codec = "av1" }, false},
		{"unknown codec", func(s *models.MirrorSettings) { s.Codec = "mpeg2" }, true},
		{"zero fps", func(s *models.MirrorSettings) { s.MaxFPS = 0 }, true},
		{"huge fps", func(s *models.MirrorSettings) { s.MaxFPS = 1000 }, true},
		{"zero width", func(s *models.MirrorSettings) { s.ResolutionX = 0 }, true},
		{"huge height", func(s *models.MirrorSettings) { s.ResolutionY = 10000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.DefaultMirrorSettings()
			tt.mutate(&s)
			err := ValidateMirrorSettings(s)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMirrorSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type staticSettings struct {
	settings models.MirrorSettings
}

func (s staticSettings) Load(context.Context) (models.MirrorSettings, error) {
	return s.settings, nil
}

func newTestLauncher(t *testing.T, runner *adbtest.FakeRunner) *MirrorLauncher {
	t.Helper()
	m := newTestManager(runner)
	_, err := m.RefreshCatalog(context.Background())
	require.NoError(t, err)
	settings := models.DefaultMirrorSettings()
	settings.Fullscreen = true
	return NewMirrorLauncher(runner, "scrcpy", m, staticSettings{settings}, zerolog.Nop())
}

func TestMirrorLauncher_Invocations(t *testing.T) {
	l := newTestLauncher(t, scriptedRunner())

	inv, err := l.ScreenInvocation(context.Background(), "R58M1")
	require.NoError(t, err)
	assert.Equal(t, "scrcpy", inv.Name)
	assert.Contains(t, inv.Args, "--fullscreen")
	assert.Negative(t, int64(inv.Timeout))

	inv, err = l.AppInvocation(context.Background(), "R58M1", "com.example.app")
	require.NoError(t, err)
	assert.Contains(t, inv.Args, "--start-app=com.example.app")

	_, err = l.ScreenInvocation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = l.AppInvocation(context.Background(), "R58M1", "com.missing")
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestMirrorLauncher_Run(t *testing.T) {
	runner := scriptedRunner()
	l := newTestLauncher(t, runner)
	inv, err := l.ScreenInvocation(context.Background(), "R58M1")
	require.NoError(t, err)

	// no scripted response: the fake reports the executable as missing
	err = l.Run(context.Background(), inv)
	assert.True(t, adb.IsKind(err, adb.ErrKindNotFound))

	runner.On("scrcpy", inv.Args, adbtest.Response{Stdout: "INFO: scrcpy 3.1\n"})
	assert.NoError(t, l.Run(context.Background(), inv))
}

func TestMirrorLauncher_Sessions(t *testing.T) {
	runner := scriptedRunner()
	l := newTestLauncher(t, runner)
	inv, err := l.ScreenInvocation(context.Background(), "R58M1")
	require.NoError(t, err)
	runner.On("scrcpy", inv.Args, adbtest.Response{Delay: time.Minute})

	sess := l.Start(inv, "R58M1", "")

	assert.NotEmpty(t, sess.ID)
	assert.Eventually(t, func() bool { return len(l.Sessions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, l.Stop(sess.ID))
	assert.Empty(t, l.Sessions())
	assert.False(t, l.Stop(sess.ID))
}

package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/spymic/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.HasPrefix(v, "/run") },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "indicator.sound_player_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-player")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-player", "--arg"}, "indicator.sound_player_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "indicator.sound_player_cmd command is available")
}

func TestCheckConfigReportsDefaults(t *testing.T) {
	check := checkConfig(config.Loaded{Path: "/tmp/missing.jsonc"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "using defaults")

	check = checkConfig(config.Loaded{Path: "/tmp/config.jsonc", Exists: true})
	require.Contains(t, check.Message, "loaded")
}

func TestCheckAudioServer(t *testing.T) {
	tests := []struct {
		name     string
		names    []string
		err      error
		wantPass bool
		wantMsg  string
	}{
		{
			name:     "pipewire pulse",
			names:    []string{"systemd", "pipewire", "pipewire-pulse"},
			wantPass: true,
			wantMsg:  "pipewire-pulse is running",
		},
		{
			name:     "pulseaudio",
			names:    []string{"pulseaudio"},
			wantPass: true,
			wantMsg:  "pulseaudio is running",
		},
		{
			name:    "none",
			names:   []string{"pipewire", "wireplumber"},
			wantMsg: "none of pipewire-pulse, pulseaudio is running",
		},
		{
			name:    "listing fails",
			err:     errors.New("proc unavailable"),
			wantMsg: "list processes: proc unavailable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			check := checkAudioServer(context.Background(), func(context.Context) ([]string, error) {
				return tc.names, tc.err
			})
			require.Equal(t, "audio.server", check.Name)
			require.Equal(t, tc.wantPass, check.Pass)
			require.Equal(t, tc.wantMsg, check.Message)
		})
	}
}

func TestRunningProcessNamesIncludesSelf(t *testing.T) {
	names, err := runningProcessNames(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, names)
}

func TestCheckHyprlandUsesVersion(t *testing.T) {
	dir := t.TempDir()
	script := "#!/usr/bin/env bash\necho '{\"tag\":\"v0.45.0\"}'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hyprctl"), []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkHyprland(context.Background())
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "v0.45.0")
}

func TestCheckPulseFailsWithoutServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkPulse()
	require.False(t, check.Pass)
	require.Equal(t, "audio.pulse", check.Name)
}

func TestRunSkipsIndicatorChecksWhenDisabled(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	cfg := config.Default()
	cfg.Indicator.Enable = false
	cfg.Indicator.SoundEnable = false

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})
	require.False(t, report.OK())

	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"config", "XDG_RUNTIME_DIR", "audio.server", "audio.pulse", "audio.device"}, names)
}

package lcu

import "testing"

func TestExtractInstallDir(t *testing.T) {
	tests := []struct {
		name    string
		cmdline string
		want    string
		ok      bool
	}{
		{
			name:    "quoted argument",
			cmdline: `"LeagueClientUx.exe" "--install-directory=C:\Riot Games\League of Legends" --other`,
			want:    `C:\Riot Games\League of Legends`,
			ok:      true,
		},
		{
			name:    "unquoted followed by flag",
			cmdline: `LeagueClientUx.exe --install-directory=D:\Games\LoL --remoting-auth-token=abc`,
			want:    `D:\Games\LoL`,
			ok:      true,
		},
		{
			name:    "at end of line",
			cmdline: `LeagueClientUx.exe --install-directory=/opt/lol`,
			want:    `/opt/lol`,
			ok:      true,
		},
		{
			name:    "absent",
			cmdline: `LeagueClientUx.exe --no-rads`,
			ok:      false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractInstallDir(tt.cmdline)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractInstallDir(%q) = (%q, %t), want (%q, %t)",
					tt.cmdline, got, ok, tt.want, tt.ok)
			}
		})
	}
}

package lcu

import (
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

// ProcessLocator finds the client install directory. Process inspection is
// OS-specific, so each port supplies its own locator; the rest of the
// discovery layer only sees this capability.
type ProcessLocator interface {
	FindInstallDir() (string, bool)
}

var installDirPattern = regexp.MustCompile(`--install-directory=([^"]+?)(?:"|\s--|$)`)

// ExtractInstallDir pulls the --install-directory argument out of a raw
// process command line. Returns false when the argument is absent.
func ExtractInstallDir(cmdline string) (string, bool) {
	m := installDirPattern.FindStringSubmatch(cmdline)
	if m == nil {
		return "", false
	}
	dir := strings.TrimSpace(m[1])
	if dir == "" {
		return "", false
	}
	return dir, true
}

// WellKnownInstallPaths returns the fixed fallback install locations for
// the current OS.
func WellKnownInstallPaths() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			`C:\Riot Games\League of Legends`,
			`D:\Riot Games\League of Legends`,
			`C:\Program Files\Riot Games\League of Legends`,
		}
	case "darwin":
		return []string{
			"/Applications/League of Legends.app/Contents/LoL",
		}
	default:
		return nil
	}
}

// NewDefaultLocator returns the locator for the current OS.
func NewDefaultLocator() ProcessLocator {
	if runtime.GOOS == "windows" {
		return &wmicLocator{}
	}
	return noopLocator{}
}

// wmicLocator shells out to WMIC for the client process command line.
// Failures are expected whenever the client is not running and stay quiet.
type wmicLocator struct{}

func (l *wmicLocator) FindInstallDir() (string, bool) {
	out, err := exec.Command("wmic", "process", "where",
		"name='LeagueClientUx.exe'", "get", "commandline").Output()
	if err != nil {
		return "", false
	}
	return ExtractInstallDir(string(out))
}

// noopLocator is used where process inspection is unavailable; discovery
// falls back to the well-known install paths.
type noopLocator struct{}

func (noopLocator) FindInstallDir() (string, bool) { return "", false }

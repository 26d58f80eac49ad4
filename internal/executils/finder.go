package executils

import (
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
)

// ResolveBinary confirms that path points at an existing, stat-able file
// and falls back to a PATH lookup by name when the configured path is
// empty or missing. The config snapshot is expected to carry absolute
// paths already; this only covers the case of a relative tool name.
func ResolveBinary(configuredPath, name string) (string, error) {
	if goruntime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}

	if configuredPath != "" {
		if _, err := os.Stat(configuredPath); err == nil {
			return configuredPath, nil
		}
		if filepathLooksAbsolute(configuredPath) {
			return "", fmt.Errorf("%s: configured path %q does not exist", name, configuredPath)
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found", name)
}

func filepathLooksAbsolute(p string) bool {
	return strings.HasPrefix(p, "/") || (len(p) > 1 && p[1] == ':')
}

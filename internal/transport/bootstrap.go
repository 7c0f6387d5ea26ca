package transport

import (
	"fmt"
)

// Bootstrap returns the POSIX shell command line a Launcher runs on the far
// end to materialise and start the bubble. Go binaries can't be compiled
// from a source blob at runtime the way a scripting-language shim can, so
// instead the controller streams its own executable image (see
// streamSelfImage and cmd/tether's TETHER_BUBBLE re-exec switch) down the
// same stdin the shell snippet reads from.
//
// The snippet first reads a single decimal line giving the image's exact
// byte length with the shell's own `read` builtin, which is guaranteed not
// to consume past the trailing newline, then reads exactly that many bytes
// with `head -c`. That leaves the pipe positioned right after the image,
// with every byte the controller writes afterwards - the framed protocol
// traffic - untouched for the exec'd bubble to read directly. The snippet
// writes the image to a temp file, marks it executable, execs it with
// TETHER_BUBBLE=1 set, and removes the directory entry so nothing is left
// behind once the process holding it open exits.
func Bootstrap(tmpDir string) string {
	if tmpDir == "" {
		tmpDir = "${TMPDIR:-/tmp}"
	}
	return fmt.Sprintf(
		`sh -c 'f=%s/.tether-bubble-$$; read -r n; head -c "$n" > "$f"; chmod 700 "$f"; rm -f "$f" & exec env TETHER_BUBBLE=1 "$f"'`,
		tmpDir,
	)
}

// FallbackBootstrap returns the command line used when an on-disk bubble
// binary (built from cmd/tether-bubble) has already been deployed to the
// remote host out of band, skipping the self-streaming step entirely. Use
// this for hosts where piping an executable image through a restrictive
// shell (e.g. a hardened sudo wrapper) isn't possible.
func FallbackBootstrap(path string) string {
	return fmt.Sprintf(`env TETHER_BUBBLE=1 %s`, path)
}

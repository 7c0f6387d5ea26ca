package transport

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBootstrapStreamsImageAndPreservesTrailingBytes exercises the actual
// shell snippet Bootstrap returns against a real /bin/sh, verifying that
// the length-prefixed image is written to the temp file exactly, and that
// bytes written after the image arrive untouched at the exec'd process's
// stdin - the property every Bootstrap-using Launcher depends on to reuse
// the same pipe for framed protocol traffic once the handshake completes.
func TestBootstrapStreamsImageAndPreservesTrailingBytes(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh on PATH")
	}

	tmpDir := t.TempDir()
	// The exec'd "image" is a tiny shell script that echoes a marker, then
	// cats whatever remains on its stdin, standing in for a bubble process
	// reading framed protocol traffic off the same pipe.
	image := []byte("#!/bin/sh\necho IMAGE-RAN\ncat\n")

	snippet := Bootstrap(tmpDir)
	cmd := exec.Command("sh", "-c", snippet)
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	require.NoError(t, cmd.Start())

	trailing := []byte("frame-bytes-after-image")
	go func() {
		fmt.Fprintf(stdin, "%d\n", len(image))
		_, _ = stdin.Write(image)
		_, _ = stdin.Write(trailing)
		_ = stdin.Close()
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bootstrap shell snippet did not exit")
	}

	out := stdout.String()
	require.Contains(t, out, "IMAGE-RAN")
	require.Contains(t, out, string(trailing))
}

// TestStreamSelfImageWritesLengthPrefixedExecutable checks streamSelfImage's
// wire format directly: a decimal length line followed by exactly that many
// bytes, matching what Bootstrap's `read -r n; head -c "$n"` expects.
func TestStreamSelfImageWritesLengthPrefixedExecutable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, streamSelfImage(&buf))

	line, err := buf.ReadString('\n')
	require.NoError(t, err)
	var n int
	_, err = fmt.Sscanf(line, "%d\n", &n)
	require.NoError(t, err)
	require.Equal(t, n, buf.Len())

	remaining, err := io.ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, remaining, n)
}

package internal_audio_device

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"testing"
	"time"

	internal_audio "github.com/rapidaai/motioncam/api/capture-api/internal/audio"
	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helperCommand re-executes the test binary as a stand-in for arecord.
func helperCommand(mode string) commandFactory {
	return func(name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	chunk := make([]byte, internal_audio.CAPTURE_AUDIO_FORMAT.ChunkBytes())
	switch os.Getenv("HELPER_MODE") {
	case "overrun":
		fmt.Fprintln(os.Stderr, "overrun!!! (at least 1.234 ms long)")
		time.Sleep(100 * time.Millisecond)
		os.Stdout.Write(chunk)
	case "short":
		os.Stdout.Write(chunk[:100])
		os.Exit(1)
	case "stream":
		for i := 0; i < 200; i++ {
			os.Stdout.Write(chunk)
			time.Sleep(50 * time.Millisecond)
		}
	default:
		os.Stdout.Write(chunk)
		os.Stdout.Write(chunk)
	}
	time.Sleep(10 * time.Second)
	os.Exit(0)
}

func TestArecordArgs(t *testing.T) {
	args := ArecordArgs("hw:1,0", internal_audio.CAPTURE_AUDIO_FORMAT)
	assert.Equal(t, []string{
		"-q", "-D", "hw:1,0", "-f", "S16_LE", "-r", "44100", "-c", "1", "-t", "raw",
	}, args)
}

func TestSampleFormat(t *testing.T) {
	assert.Equal(t, "U8", sampleFormat(8))
	assert.Equal(t, "S16_LE", sampleFormat(16))
	assert.Equal(t, "S24_LE", sampleFormat(24))
	assert.Equal(t, "S32_LE", sampleFormat(32))
	assert.Equal(t, "S16_LE", sampleFormat(0))
}

func TestArecordDevice_DefaultDeviceName(t *testing.T) {
	d := NewArecordDevice(commons.NewNopLogger(), "").(*arecordDevice)
	assert.Equal(t, DefaultDevice, d.device)
	assert.Equal(t, DefaultArecordBinary, d.binary)
}

func TestArecordDevice_ReadsFullChunks(t *testing.T) {
	d := NewArecordDevice(commons.NewNopLogger(), "default", withCommand(helperCommand("ok")))
	require.NoError(t, d.Open(internal_audio.CAPTURE_AUDIO_FORMAT))

	for i := 0; i < 2; i++ {
		data, err := d.ReadChunk()
		require.NoError(t, err)
		assert.Len(t, data, internal_audio.CAPTURE_AUDIO_FORMAT.ChunkBytes())
	}
	require.NoError(t, d.Close())

	_, err := d.ReadChunk()
	assert.Error(t, err)
}

func TestArecordDevice_OverrunIsReportedWithData(t *testing.T) {
	d := NewArecordDevice(commons.NewNopLogger(), "default", withCommand(helperCommand("overrun")))
	require.NoError(t, d.Open(internal_audio.CAPTURE_AUDIO_FORMAT))
	defer d.Close()

	data, err := d.ReadChunk()
	assert.ErrorIs(t, err, internal_type.ErrBufferOverflow)
	assert.Len(t, data, internal_audio.CAPTURE_AUDIO_FORMAT.ChunkBytes())
}

func TestArecordDevice_ProcessExitIsReadError(t *testing.T) {
	d := NewArecordDevice(commons.NewNopLogger(), "default", withCommand(helperCommand("short")))
	require.NoError(t, d.Open(internal_audio.CAPTURE_AUDIO_FORMAT))

	data, err := d.ReadChunk()
	assert.Error(t, err)
	assert.Len(t, data, 100)
	assert.NoError(t, d.Close())
}

func TestArecordDevice_MissingBinary(t *testing.T) {
	d := NewArecordDevice(commons.NewNopLogger(), "default", WithBinary("/nonexistent/arecord"))
	assert.Error(t, d.Open(internal_audio.CAPTURE_AUDIO_FORMAT))
}

func TestArecordDevice_OpenTwice(t *testing.T) {
	d := NewArecordDevice(commons.NewNopLogger(), "default", withCommand(helperCommand("ok")))
	require.NoError(t, d.Open(internal_audio.CAPTURE_AUDIO_FORMAT))
	defer d.Close()
	assert.Error(t, d.Open(internal_audio.CAPTURE_AUDIO_FORMAT))
}

// A terminal interrupt goes to the whole foreground process group. The
// scenario runs in a fresh session so the group signal stays inside it.
func TestArecordDevice_SurvivesGroupInterrupt(t *testing.T) {
	if os.Getenv("GO_WANT_GROUP_INTERRUPT") == "1" {
		groupInterruptScenario(t)
		return
	}
	cmd := exec.Command(os.Args[0], "-test.run=TestArecordDevice_SurvivesGroupInterrupt", "-test.v")
	cmd.Env = append(os.Environ(), "GO_WANT_GROUP_INTERRUPT=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func groupInterruptScenario(t *testing.T) {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	d := NewArecordDevice(commons.NewNopLogger(), "default", withCommand(helperCommand("stream")))
	require.NoError(t, d.Open(internal_audio.CAPTURE_AUDIO_FORMAT))

	require.NoError(t, syscall.Kill(-syscall.Getpgrp(), syscall.SIGINT))
	select {
	case <-interrupts:
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt not delivered to the process group")
	}
	// more chunks than the pipe can hold, so a dead arecord shows up as EOF
	for i := 0; i < 20; i++ {
		data, err := d.ReadChunk()
		require.NoError(t, err)
		assert.Len(t, data, internal_audio.CAPTURE_AUDIO_FORMAT.ChunkBytes())
	}
	require.NoError(t, d.Close())
}

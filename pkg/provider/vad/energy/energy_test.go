package energy

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/voicetutor/pkg/provider/vad"
)

func constantFrame(v int16, samples int) []byte {
	buf := make([]byte, samples*2)
	for i := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestSession_Transitions(t *testing.T) {
	t.Parallel()
	sess, err := New().NewSession(vad.Config{SampleRate: 16000, Channels: 1, Threshold: 100})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	loud := constantFrame(1000, 160)
	quiet := constantFrame(10, 160)

	steps := []struct {
		frame []byte
		want  vad.VADEventType
	}{
		{quiet, vad.VADSilence},
		{loud, vad.VADSpeechStart},
		{loud, vad.VADSpeechContinue},
		{quiet, vad.VADSpeechEnd},
		{quiet, vad.VADSilence},
	}
	for i, st := range steps {
		ev, err := sess.ProcessFrame(st.frame)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if ev.Type != st.want {
			t.Errorf("step %d: got %v, want %v", i, ev.Type, st.want)
		}
	}
}

func TestSession_ThresholdBoundary(t *testing.T) {
	t.Parallel()
	sess, _ := New().NewSession(vad.Config{Channels: 1, Threshold: 100})
	ev, _ := sess.ProcessFrame(constantFrame(100, 4))
	if ev.Silent() {
		t.Errorf("energy equal to threshold must count as speech, got %v", ev.Type)
	}
	ev, _ = sess.ProcessFrame(constantFrame(99, 4))
	if !ev.Silent() {
		t.Errorf("energy below threshold must be silent, got %v", ev.Type)
	}
}

func TestSession_RejectsPartialStereoFrame(t *testing.T) {
	t.Parallel()
	sess, _ := New().NewSession(vad.Config{Channels: 2, Threshold: 1})
	if _, err := sess.ProcessFrame(make([]byte, 6)); err == nil {
		t.Error("expected error for 6-byte stereo frame")
	}
}

func TestSession_Closed(t *testing.T) {
	t.Parallel()
	sess, _ := New().NewSession(vad.Config{Channels: 1})
	_ = sess.Close()
	if _, err := sess.ProcessFrame(make([]byte, 4)); err == nil {
		t.Error("expected error after Close")
	}
}

func TestNewSession_InvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := New().NewSession(vad.Config{Channels: 1, Threshold: -1}); err == nil {
		t.Error("expected error for negative threshold")
	}
	if _, err := New().NewSession(vad.Config{Channels: 0}); err == nil {
		t.Error("expected error for zero channels")
	}
}

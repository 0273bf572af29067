package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func testImage() SelectedImage {
	return SelectedImage{Filename: "leaf.png", MimeType: "image/png", Size: 4, Data: []byte("leaf")}
}

func TestNextStateRejectsUnknownTransition(t *testing.T) {
	state, err := NextState(StateIdle, EventDetect)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, StateIdle, state)

	state, err = NextState(StateDetecting, EventFailed)
	require.NoError(t, err)
	require.Equal(t, StatePreviewing, state)
}

func TestSessionDetectWithoutSelection(t *testing.T) {
	s := NewSession("s1", testNow)
	_, err := s.BeginDetect(testNow)
	require.ErrorIs(t, err, ErrNoImageSelected)
	require.ErrorIs(t, err, ErrDetection)
	require.Equal(t, StateIdle, s.State())
}

func TestSessionHappyPath(t *testing.T) {
	s := NewSession("s1", testNow)
	gen, err := s.Select(testImage(), testNow)
	require.NoError(t, err)
	require.Equal(t, StatePreviewing, s.State())
	require.True(t, s.ApplyPreview(gen, "data:image/jpeg;base64,AAAA", nil))

	ticket, err := s.BeginDetect(testNow)
	require.NoError(t, err)
	require.Equal(t, StateDetecting, s.State())

	require.NoError(t, s.CompleteDetect(ticket, DetectionResult{DiseaseName: "Tomato___healthy"}, testNow))
	require.Equal(t, StateShowingResult, s.State())

	result, ok := s.Result()
	require.True(t, ok)
	require.Equal(t, "Tomato___healthy", result.DiseaseName)

	snap := s.Snapshot()
	require.True(t, snap.PreviewReady)
	require.NotNil(t, snap.Image)
	require.Equal(t, "leaf.png", snap.Image.Filename)
}

func TestSessionFailureRevertsToPreviewAndKeepsResult(t *testing.T) {
	s := NewSession("s1", testNow)
	_, err := s.Select(testImage(), testNow)
	require.NoError(t, err)

	first, err := s.BeginDetect(testNow)
	require.NoError(t, err)
	require.NoError(t, s.CompleteDetect(first, DetectionResult{DiseaseName: "Tomato___Early_blight"}, testNow))

	second, err := s.BeginDetect(testNow)
	require.NoError(t, err)
	require.NoError(t, s.FailDetect(second, testNow))

	require.Equal(t, StatePreviewing, s.State())
	require.Equal(t, DetectionFailedMessage, s.Snapshot().LastError)
	result, ok := s.Result()
	require.True(t, ok)
	require.Equal(t, "Tomato___Early_blight", result.DiseaseName)
}

func TestSessionLatestDetectWins(t *testing.T) {
	s := NewSession("s1", testNow)
	_, err := s.Select(testImage(), testNow)
	require.NoError(t, err)

	first, err := s.BeginDetect(testNow)
	require.NoError(t, err)
	second, err := s.BeginDetect(testNow)
	require.NoError(t, err)

	require.NoError(t, s.CompleteDetect(second, DetectionResult{DiseaseName: "latest"}, testNow))
	err = s.CompleteDetect(first, DetectionResult{DiseaseName: "stale"}, testNow)
	require.ErrorIs(t, err, ErrStaleResponse)

	result, _ := s.Result()
	require.Equal(t, "latest", result.DiseaseName)
	require.Equal(t, StateShowingResult, s.State())
}

func TestSessionStaleFailureDoesNotRevert(t *testing.T) {
	s := NewSession("s1", testNow)
	_, err := s.Select(testImage(), testNow)
	require.NoError(t, err)

	first, err := s.BeginDetect(testNow)
	require.NoError(t, err)
	_, err = s.BeginDetect(testNow)
	require.NoError(t, err)

	require.ErrorIs(t, s.FailDetect(first, testNow), ErrStaleResponse)
	require.Equal(t, StateDetecting, s.State())
	require.Empty(t, s.Snapshot().LastError)
}

func TestSessionClearDiscardsPreviewAndDetection(t *testing.T) {
	s := NewSession("s1", testNow)
	gen, err := s.Select(testImage(), testNow)
	require.NoError(t, err)
	ticket, err := s.BeginDetect(testNow)
	require.NoError(t, err)

	s.Clear(testNow)
	require.Equal(t, StateIdle, s.State())
	require.False(t, s.ApplyPreview(gen, "data:late", nil))
	require.ErrorIs(t, s.CompleteDetect(ticket, DetectionResult{}, testNow), ErrStaleResponse)

	snap := s.Snapshot()
	require.Nil(t, snap.Image)
	require.Empty(t, snap.PreviewURL)
	require.Nil(t, snap.Result)
}

func TestSessionPreviewFailureEntersError(t *testing.T) {
	s := NewSession("s1", testNow)
	gen, err := s.Select(testImage(), testNow)
	require.NoError(t, err)

	require.True(t, s.ApplyPreview(gen, "", errors.New("corrupt image")))
	require.Equal(t, StateError, s.State())
	require.Equal(t, "corrupt image", s.Snapshot().PreviewError)

	_, err = s.BeginDetect(testNow)
	require.NoError(t, err)
	require.Equal(t, StateDetecting, s.State())
}

func TestSessionAwaitPreview(t *testing.T) {
	s := NewSession("s1", testNow)
	gen, err := s.Select(testImage(), testNow)
	require.NoError(t, err)

	go s.ApplyPreview(gen, "data:image/jpeg;base64,AAAA", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	url, err := s.AwaitPreview(ctx)
	require.NoError(t, err)
	require.Equal(t, "data:image/jpeg;base64,AAAA", url)
}

func TestSessionAwaitPreviewReplacedSelection(t *testing.T) {
	s := NewSession("s1", testNow)
	_, err := s.Select(testImage(), testNow)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.AwaitPreview(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Clear(testNow)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("AwaitPreview did not return after clear")
	}
}

func TestSessionReselectKeepsResultUntilSuperseded(t *testing.T) {
	s := NewSession("s1", testNow)
	_, err := s.Select(testImage(), testNow)
	require.NoError(t, err)
	ticket, err := s.BeginDetect(testNow)
	require.NoError(t, err)
	require.NoError(t, s.CompleteDetect(ticket, DetectionResult{DiseaseName: "Tomato___Early_blight"}, testNow))

	_, err = s.Select(testImage(), testNow)
	require.NoError(t, err)
	require.Equal(t, StatePreviewing, s.State())
	result, ok := s.Result()
	require.True(t, ok)
	require.Equal(t, "Tomato___Early_blight", result.DiseaseName)
	require.ErrorIs(t, s.CompleteDetect(ticket, DetectionResult{DiseaseName: "late"}, testNow), ErrStaleResponse)

	next, err := s.BeginDetect(testNow)
	require.NoError(t, err)
	require.NoError(t, s.CompleteDetect(next, DetectionResult{DiseaseName: "Tomato___healthy"}, testNow))
	result, _ = s.Result()
	require.Equal(t, "Tomato___healthy", result.DiseaseName)
}

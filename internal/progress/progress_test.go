package progress

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alpacaproxy/proxy-release/internal/events"
)

type recordingReporter struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingReporter) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recordingReporter) Start(total int, description string) {
	r.add(fmt.Sprintf("start %d %s", total, description))
}

func (r *recordingReporter) Update(current int, description string) {
	r.add(fmt.Sprintf("update %d %s", current, description))
}

func (r *recordingReporter) Finish()         { r.add("finish") }
func (r *recordingReporter) Error(err error) { r.add("error " + err.Error()) }

func (r *recordingReporter) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestFollow_SuccessfulRun(t *testing.T) {
	bus := events.NewEventBus(0)
	rec := &recordingReporter{}
	stop := Follow(bus, rec)

	bus.PublishStateChange("Idle", "ReadingManifest", 1, 3)
	bus.PublishStateChange("ReadingManifest", "Building", 2, 3)
	bus.PublishStateChange("Building", "Done", 3, 3)
	bus.PublishComplete("Done", 0, time.Second)
	stop()

	assert.Equal(t, []string{
		"start 3 ReadingManifest",
		"update 1 ReadingManifest",
		"update 2 Building",
		"update 3 Done",
		"finish",
	}, rec.Calls())
}

func TestFollow_FailedRun(t *testing.T) {
	bus := events.NewEventBus(0)
	rec := &recordingReporter{}
	stop := Follow(bus, rec)

	bus.PublishStateChange("Idle", "ReadingManifest", 1, 3)
	bus.PublishStepFailed("ReadingManifest", errors.New("missing field"))
	bus.PublishStateChange("ReadingManifest", "Failed", 0, 3)
	bus.PublishComplete("Failed", 0, time.Second)
	stop()

	assert.Equal(t, []string{
		"start 3 ReadingManifest",
		"update 1 ReadingManifest",
		"error missing field",
	}, rec.Calls())
}

func TestFollow_StopWithoutRun(t *testing.T) {
	bus := events.NewEventBus(0)
	rec := &recordingReporter{}
	stop := Follow(bus, rec)
	stop()
	stop()
	assert.Empty(t, rec.Calls())
}

func TestCLIProgress_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgress(&buf)
	p.Start(3, "ReadingManifest")
	p.Update(2, "Building")
	p.Finish()
	assert.Contains(t, buf.String(), "ReadingManifest")
}

func TestNewReporter_Disabled(t *testing.T) {
	_, ok := NewReporter(true).(*NoOpProgress)
	assert.True(t, ok)
}

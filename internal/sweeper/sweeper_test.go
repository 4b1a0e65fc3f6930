package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bassista/docsweep/internal/document"
	"github.com/bassista/docsweep/internal/save"
)

func newTestSweeper(t *testing.T) (*Sweeper, *document.Registry, *fakeClock, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	registry := document.NewRegistry(func(id, path string) document.Document {
		return document.NewFile(id, path, fs)
	})
	clock := newFakeClock()
	sw := New(registry, save.NewExecutor(nil), WithClock(clock))
	return sw, registry, clock, fs
}

func mustOpen(t *testing.T, sw *Sweeper, doc document.Document) {
	t.Helper()
	if err := sw.OnOpen(doc); err != nil {
		t.Fatalf("open %s: %v", doc.ID(), err)
	}
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestSweeper_SavesDirtyDocumentAfterIdleWindow(t *testing.T) {
	sw, _, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)
	doc.SetContent([]byte("v1"))

	clock.Advance(4 * time.Second)
	if _, err := afero.ReadFile(fs, "/tmp/a"); err == nil {
		t.Fatal("document must not be saved before the idle window elapses")
	}

	clock.Advance(time.Second)
	if got := readFile(t, fs, "/tmp/a"); got != "v1" {
		t.Errorf("expected saved content 'v1', got %q", got)
	}
	if doc.Modified() {
		t.Error("modified flag must be false immediately after a fire")
	}
}

func TestSweeper_SelfRearmsAfterEachFire(t *testing.T) {
	sw, _, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)

	doc.SetContent([]byte("v1"))
	clock.Advance(5 * time.Second)
	if got := readFile(t, fs, "/tmp/a"); got != "v1" {
		t.Fatalf("first fire: got %q", got)
	}

	// A second dirty period is covered by the re-armed timer, no restart needed.
	doc.SetContent([]byte("v2"))
	clock.Advance(5 * time.Second)
	if got := readFile(t, fs, "/tmp/a"); got != "v2" {
		t.Errorf("second fire: got %q", got)
	}
	if !sw.Running() {
		t.Error("sweeper must stay running across fires")
	}
}

func TestSweeper_CleanSweepStillRearms(t *testing.T) {
	sw, _, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)

	// Nothing dirty: two windows pass as no-op sweeps.
	clock.Advance(10 * time.Second)

	doc.SetContent([]byte("late edit"))
	clock.Advance(5 * time.Second)
	if got := readFile(t, fs, "/tmp/a"); got != "late edit" {
		t.Errorf("expected save after no-op sweeps, got %q", got)
	}
}

func TestSweeper_ActivityDefersFire(t *testing.T) {
	sw, _, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)
	doc.SetContent([]byte("v1"))

	// Continuous activity faster than the interval defers the fire indefinitely.
	for i := 0; i < 10; i++ {
		clock.Advance(3 * time.Second)
		sw.Activity()
	}
	if _, err := afero.ReadFile(fs, "/tmp/a"); err == nil {
		t.Fatal("fire must be deferred while activity continues")
	}

	// Once activity stops, exactly one fire occurs after the interval.
	clock.Advance(5 * time.Second)
	if got := readFile(t, fs, "/tmp/a"); got != "v1" {
		t.Errorf("expected save once idle, got %q", got)
	}
}

func TestSweeper_RegistrationRestartsIdleWindow(t *testing.T) {
	sw, _, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	a := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, a)
	a.SetContent([]byte("a1"))

	// 3s into the window a new document registers: the countdown restarts,
	// so nothing fires at the original t=5 mark.
	clock.Advance(3 * time.Second)
	b := document.NewFile("b", "/tmp/b", fs)
	mustOpen(t, sw, b)
	b.SetContent([]byte("b1"))

	clock.Advance(4 * time.Second) // t=7: original deadline passed, restarted one has not
	if _, err := afero.ReadFile(fs, "/tmp/b"); err == nil {
		t.Fatal("restarted window must not expire mid-registration")
	}

	clock.Advance(time.Second) // t=8: full window since registration
	if got := readFile(t, fs, "/tmp/a"); got != "a1" {
		t.Errorf("expected a saved, got %q", got)
	}
	if got := readFile(t, fs, "/tmp/b"); got != "b1" {
		t.Errorf("expected b saved, got %q", got)
	}
}

// The concrete scenario from the design: interval 5s, doc A edited at t=0,
// saved at t=5; at t=7 A is edited again and B opens (restart), both saved
// at t=12.
func TestSweeper_TwoDocumentScenario(t *testing.T) {
	sw, _, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	a := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, a)
	a.SetContent([]byte("a@t0"))

	clock.Advance(5 * time.Second) // t=5
	if got := readFile(t, fs, "/tmp/a"); got != "a@t0" {
		t.Fatalf("t=5: got %q", got)
	}
	if a.Modified() {
		t.Fatal("t=5: a must be clean")
	}

	clock.Advance(2 * time.Second) // t=7
	a.SetContent([]byte("a@t7"))
	b := document.NewFile("b", "/tmp/b", fs)
	mustOpen(t, sw, b) // restart: next fire at t=12
	b.SetContent([]byte("b@t7"))

	clock.Advance(4 * time.Second) // t=11: nothing yet
	if got := readFile(t, fs, "/tmp/a"); got != "a@t0" {
		t.Fatalf("t=11: a flushed early, got %q", got)
	}

	clock.Advance(time.Second) // t=12
	if got := readFile(t, fs, "/tmp/a"); got != "a@t7" {
		t.Errorf("t=12: expected a@t7, got %q", got)
	}
	if got := readFile(t, fs, "/tmp/b"); got != "b@t7" {
		t.Errorf("t=12: expected b@t7, got %q", got)
	}
}

func TestSweeper_ScratchDocumentNeverTracked(t *testing.T) {
	sw, registry, clock, _ := newTestSweeper(t)
	defer sw.Stop()

	sw.Start(context.Background(), 5*time.Second)

	scratch := document.NewScratch("scratch")
	if err := sw.OnOpen(scratch); err != nil {
		t.Fatalf("opening a scratch document must be a no-op, got %v", err)
	}
	scratch.SetContent([]byte("never written"))

	clock.Advance(30 * time.Second)
	if registry.Len() != 0 {
		t.Error("scratch document must never enter the registry")
	}
}

func TestSweeper_ClosedDocumentEvictedBySweep(t *testing.T) {
	sw, registry, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)
	doc.SetContent([]byte("x"))

	// Closed between scheduling and sweep: lazily evicted, nothing written.
	doc.Close()
	clock.Advance(5 * time.Second)

	if registry.Len() != 0 {
		t.Error("closed document must be absent from the registry after the sweep")
	}
	if _, err := afero.ReadFile(fs, "/tmp/a"); err == nil {
		t.Error("closed document must not be flushed")
	}
}

// failingSaver fails specific documents and records every attempt.
type failingSaver struct {
	mu       sync.Mutex
	inner    Saver
	failIDs  map[string]bool
	attempts map[string]int
}

func (f *failingSaver) Save(ctx context.Context, doc document.Document) (save.Outcome, error) {
	f.mu.Lock()
	f.attempts[doc.ID()]++
	fail := f.failIDs[doc.ID()]
	f.mu.Unlock()
	if fail {
		return save.Outcome{Result: save.ResultSkipped}, errors.New("storage failure")
	}
	return f.inner.Save(ctx, doc)
}

func TestSweeper_SaveErrorDoesNotAbortSweep(t *testing.T) {
	fs := afero.NewMemMapFs()
	registry := document.NewRegistry(nil)
	clock := newFakeClock()
	saver := &failingSaver{
		inner:    save.NewExecutor(nil),
		failIDs:  map[string]bool{"bad": true},
		attempts: map[string]int{},
	}
	sw := New(registry, saver, WithClock(clock))
	defer sw.Stop()

	bad := document.NewFile("bad", "/tmp/bad", fs)
	good := document.NewFile("good", "/tmp/good", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, bad)
	mustOpen(t, sw, good)
	bad.SetContent([]byte("b"))
	good.SetContent([]byte("g"))

	clock.Advance(10 * time.Second)
	if got := readFile(t, fs, "/tmp/good"); got != "g" {
		t.Errorf("good document must be saved despite the failure, got %q", got)
	}
	if registry.Len() != 2 {
		t.Error("failing document must stay tracked")
	}
	if !bad.Modified() {
		t.Error("failing document must stay dirty")
	}

	// The next fire retries the failed document.
	clock.Advance(5 * time.Second)
	saver.mu.Lock()
	attempts := saver.attempts["bad"]
	saver.mu.Unlock()
	if attempts < 2 {
		t.Errorf("expected at least 2 attempts on the failing document, got %d", attempts)
	}
}

func TestSweeper_ExactlyOneSavePerFire(t *testing.T) {
	fs := afero.NewMemMapFs()
	registry := document.NewRegistry(nil)
	clock := newFakeClock()
	saver := &failingSaver{
		inner:    save.NewExecutor(nil),
		failIDs:  map[string]bool{},
		attempts: map[string]int{},
	}
	sw := New(registry, saver, WithClock(clock))
	defer sw.Stop()

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)
	doc.SetContent([]byte("x"))

	clock.Advance(5 * time.Second)
	if saver.attempts["a"] != 1 {
		t.Errorf("expected exactly one save attempt per fire, got %d", saver.attempts["a"])
	}
}

func TestSweeper_StopAndRestart(t *testing.T) {
	sw, _, clock, fs := newTestSweeper(t)

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)
	doc.SetContent([]byte("x"))

	sw.Stop()
	sw.Stop() // idempotent
	if sw.Running() {
		t.Fatal("expected stopped")
	}

	clock.Advance(30 * time.Second)
	if _, err := afero.ReadFile(fs, "/tmp/a"); err == nil {
		t.Fatal("stopped sweeper must not fire")
	}

	sw.Restart(5 * time.Second)
	if !sw.Running() {
		t.Fatal("restart must arm a stopped sweeper")
	}
	clock.Advance(5 * time.Second)
	if got := readFile(t, fs, "/tmp/a"); got != "x" {
		t.Errorf("expected save after restart, got %q", got)
	}
}

func TestSweeper_IntervalChangeTakesEffectOnRestart(t *testing.T) {
	sw, _, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)
	doc.SetContent([]byte("x"))

	sw.Restart(2 * time.Second)
	if sw.Interval() != 2*time.Second {
		t.Fatalf("expected interval 2s, got %v", sw.Interval())
	}

	clock.Advance(2 * time.Second)
	if got := readFile(t, fs, "/tmp/a"); got != "x" {
		t.Errorf("expected save after shortened window, got %q", got)
	}
}

func TestSweeper_OnCloseKeepsTimerArmed(t *testing.T) {
	sw, registry, clock, fs := newTestSweeper(t)
	defer sw.Stop()

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)

	sw.OnClose(doc)
	if registry.Len() != 0 {
		t.Fatal("expected empty registry")
	}
	if !sw.Running() {
		t.Error("closing the last document must not stop the sweeper")
	}

	// Empty sweeps are harmless no-ops and the timer keeps re-arming.
	clock.Advance(20 * time.Second)
	if !sw.Running() {
		t.Error("sweeper must survive empty sweeps")
	}
}

func TestSweeper_CloseRunsFinalSweep(t *testing.T) {
	sw, _, _, fs := newTestSweeper(t)

	doc := document.NewFile("a", "/tmp/a", fs)
	sw.Start(context.Background(), 5*time.Second)
	mustOpen(t, sw, doc)
	doc.SetContent([]byte("last words"))

	sw.Close()

	if sw.Running() {
		t.Error("expected stopped after Close")
	}
	if got := readFile(t, fs, "/tmp/a"); got != "last words" {
		t.Errorf("final sweep must flush pending changes, got %q", got)
	}
}

func TestSweeper_ContextCancelStops(t *testing.T) {
	sw, _, _, fs := newTestSweeper(t)

	doc := document.NewFile("a", "/tmp/a", fs)
	ctx, cancel := context.WithCancel(context.Background())
	sw.Start(ctx, 5*time.Second)
	mustOpen(t, sw, doc)

	cancel()
	deadline := time.After(2 * time.Second)
	for sw.Running() {
		select {
		case <-deadline:
			t.Fatal("sweeper did not stop after context cancellation")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

package game

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/zond/meshmush/structs"
	"github.com/zond/meshmush/trigger"
)

func TestTriggerStatsRecord(t *testing.T) {
	s := NewTriggerStats()
	s.Record(structs.OnLook, "lamp", trigger.Result{Kind: trigger.Success, Messages: []string{"glow"}}, 2*time.Millisecond)
	s.Record(structs.OnLook, "lamp", trigger.Result{Kind: trigger.Failed, Reason: "Message limit reached (3 max)"}, 4*time.Millisecond)
	s.Record(structs.OnPoke, "lamp", trigger.Result{Kind: trigger.RateLimited, Reason: "cooldown"}, 0)
	s.Record(structs.OnEnter, "fountain", trigger.Result{Kind: trigger.Success}, 80*time.Millisecond)

	snap := s.Snapshot()
	if snap.Total != 3 {
		t.Errorf("Total = %d, want 3", snap.Total)
	}
	if snap.Slow != 1 {
		t.Errorf("Slow = %d, want 1", snap.Slow)
	}
	wantByResult := map[trigger.ResultKind]uint64{trigger.Success: 2, trigger.Failed: 1, trigger.RateLimited: 1}
	if diff := cmp.Diff(wantByResult, snap.ByResult); diff != "" {
		t.Errorf("ByResult mismatch (-want +got):\n%s", diff)
	}
	wantByKind := map[structs.TriggerKind]uint64{structs.OnLook: 2, structs.OnEnter: 1}
	if diff := cmp.Diff(wantByKind, snap.ByKind); diff != "" {
		t.Errorf("ByKind mismatch (-want +got):\n%s", diff)
	}

	top := s.TopObjects(1)
	if len(top) != 1 || top[0].ObjectID != "lamp" {
		t.Fatalf("TopObjects(1) = %+v", top)
	}
	lamp := top[0]
	if lamp.Executions != 2 || lamp.Failures != 1 || lamp.RateLimited != 1 {
		t.Errorf("lamp stats = %+v", lamp)
	}
	if lamp.AvgTime() != 3*time.Millisecond || lamp.MaxTime != 4*time.Millisecond {
		t.Errorf("lamp times avg=%v max=%v", lamp.AvgTime(), lamp.MaxTime)
	}

	recent := s.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("Recent = %+v, want 2 records", recent)
	}
	if recent[0].ObjectID != "fountain" || recent[1].Result != trigger.Failed {
		t.Errorf("Recent order = %+v", recent)
	}
}

func TestTriggerStatsTruncatesReasons(t *testing.T) {
	s := NewTriggerStats()
	s.Record(structs.OnUse, "wand", trigger.Result{Kind: trigger.Failed, Reason: strings.Repeat("x", 500)}, 0)
	if got := len(s.Recent(1)[0].Reason); got != maxReasonLength {
		t.Errorf("reason length = %d, want %d", got, maxReasonLength)
	}
}

func TestTruncateReason(t *testing.T) {
	for _, tt := range []struct {
		name   string
		reason string
		want   string
	}{
		{name: "short", reason: "boom", want: "boom"},
		{name: "exact", reason: strings.Repeat("x", maxReasonLength), want: strings.Repeat("x", maxReasonLength)},
		{name: "ascii", reason: strings.Repeat("x", maxReasonLength+1), want: strings.Repeat("x", maxReasonLength)},
		{name: "rune across the cut", reason: strings.Repeat("x", maxReasonLength-1) + "é", want: strings.Repeat("x", maxReasonLength-1)},
		{name: "emoji across the cut", reason: strings.Repeat("x", maxReasonLength-2) + "🔊🔊", want: strings.Repeat("x", maxReasonLength-2)},
		{name: "multibyte", reason: strings.Repeat("ö", maxReasonLength), want: strings.Repeat("ö", maxReasonLength/2)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateReason(tt.reason)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("truncateReason mismatch (-want +got):\n%s", diff)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateReason(%q) = %q is not valid UTF-8", tt.reason, got)
			}
		})
	}
}

func TestTriggerStatsRecentNonPositive(t *testing.T) {
	s := NewTriggerStats()
	s.Record(structs.OnUse, "wand", trigger.Result{Kind: trigger.Failed, Reason: "boom"}, 0)
	for _, n := range []int{0, -1, -100} {
		if got := s.Recent(n); len(got) != 0 {
			t.Errorf("Recent(%d) = %+v, want none", n, got)
		}
	}
}

func TestTriggerStatsRecentWraps(t *testing.T) {
	s := NewTriggerStats()
	for i := 0; i < recentBufferSize+5; i++ {
		s.Record(structs.OnUse, "wand", trigger.Result{Kind: trigger.TimedOut}, 0)
	}
	if got := len(s.Recent(recentBufferSize * 2)); got != recentBufferSize {
		t.Errorf("len(Recent) = %d, want %d", got, recentBufferSize)
	}
}

func TestTriggerStatsReset(t *testing.T) {
	s := NewTriggerStats()
	s.Record(structs.OnUse, "wand", trigger.Result{Kind: trigger.Failed}, 0)
	s.Reset()
	if snap := s.Snapshot(); snap.Total != 0 || len(snap.ByResult) != 0 {
		t.Errorf("Snapshot after Reset = %+v", snap)
	}
	if len(s.TopObjects(0)) != 0 || len(s.Recent(10)) != 0 {
		t.Error("Reset left objects or records behind")
	}
}

package container

import "testing"

func buildTestIndex() *FrameIndex {
	fi := &FrameIndex{}
	fi.PushFrame(0, 0, true)
	fi.PushFrame(100, 1000, false)
	fi.PushFrame(200, 2000, false)
	fi.PushFrame(300, 3000, true)
	fi.PushFrame(400, 4000, false)
	fi.PushVideoEnd(500, 5000)
	return fi
}

func TestFindFrameIndexForTimestamp(t *testing.T) {
	fi := buildTestIndex()

	cases := []struct {
		ts   int64
		want int
	}{
		{-1, -1},
		{0, 0},
		{50, 0},
		{100, 1},
		{250, 2},
		{300, 3},
		{499, 4},
		{500, 4},
		{501, -1},
	}
	for _, c := range cases {
		if got := fi.FindFrameIndexForTimestamp(c.ts); got != c.want {
			t.Errorf("FindFrameIndexForTimestamp(%d) = %d, want %d", c.ts, got, c.want)
		}
	}
}

func TestFindDependencyFrames(t *testing.T) {
	fi := buildTestIndex()

	cases := []struct {
		frame               int
		wantKeyframe, wantPredecessor int
	}{
		{0, -1, -1}, // keyframe itself
		{1, 0, 0},
		{2, 0, 1},
		{3, -1, -1}, // keyframe itself
		{4, 3, 3},
	}
	for _, c := range cases {
		gotK, gotP := fi.FindDependencyFrames(c.frame)
		if gotK != c.wantKeyframe || gotP != c.wantPredecessor {
			t.Errorf("FindDependencyFrames(%d) = (%d, %d), want (%d, %d)", c.frame, gotK, gotP, c.wantKeyframe, c.wantPredecessor)
		}
	}
}

func TestFrameCountExcludesDummyEntry(t *testing.T) {
	fi := buildTestIndex()
	if got := fi.FrameCount(); got != 5 {
		t.Errorf("FrameCount() = %d, want 5", got)
	}
	if got := fi.VideoStartTimestamp(); got != 0 {
		t.Errorf("VideoStartTimestamp() = %d, want 0", got)
	}
	if got := fi.VideoEndTimestamp(); got != 500 {
		t.Errorf("VideoEndTimestamp() = %d, want 500", got)
	}
}

package graph

import "testing"

func TestTransitions(t *testing.T) {
	tests := []struct {
		name  string
		from  InteractionState
		event InteractionEvent
		want  InteractionState
	}{
		{"idle drag start", Idle, EvDragStart, Dragging},
		{"idle select start", Idle, EvSelectStart, Selecting},
		{"idle connect start", Idle, EvConnectStart, Connecting},
		{"drag end", Dragging, EvDragEnd, Idle},
		{"select end", Selecting, EvSelectEnd, Idle},
		{"connect end", Connecting, EvConnectEnd, Idle},
		{"stray drag end in idle", Idle, EvDragEnd, Idle},
		{"select end while dragging ignored", Dragging, EvSelectEnd, Dragging},
		{"drag start while connecting ignored", Connecting, EvDragStart, Connecting},
		{"connect end while selecting ignored", Selecting, EvConnectEnd, Selecting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transition(tt.from, tt.event); got != tt.want {
				t.Errorf("Transition(%v, %v) = %v, want %v", tt.from, tt.event, got, tt.want)
			}
		})
	}
}

func TestSuspended(t *testing.T) {
	if Idle.Suspended() {
		t.Error("idle must not suspend refresh")
	}
	if !Dragging.Suspended() {
		t.Error("dragging must suspend refresh")
	}
	if !Selecting.Suspended() {
		t.Error("selecting must suspend refresh")
	}
	if Connecting.Suspended() {
		t.Error("holding a connection wire must not suspend refresh")
	}
}

func TestViewportRoundTrip(t *testing.T) {
	v := Viewport{OffsetX: -100, OffsetY: 40, Zoom: 2}
	cx, cy := v.ScreenToCanvas(60, 30)
	sx, sy := v.CanvasToScreen(cx, cy)
	if sx != 60 || sy != 30 {
		t.Errorf("round trip drifted: (%v,%v)", sx, sy)
	}

	// Zero zoom behaves as 1.
	var unset Viewport
	cx, cy = unset.ScreenToCanvas(15, 25)
	if cx != 15 || cy != 25 {
		t.Errorf("unset viewport must be identity, got (%v,%v)", cx, cy)
	}
}

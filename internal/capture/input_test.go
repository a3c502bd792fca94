package capture

import (
	"encoding/json"
	"testing"
)

func TestInputEventDecodesWireShapes(t *testing.T) {
	cases := []struct {
		payload string
		check   func(t *testing.T, ev InputEvent)
	}{
		{`{"type":"key_down","key":"ArrowLeft"}`, func(t *testing.T, ev InputEvent) {
			if ev.Type != "key_down" || ev.Key != "ArrowLeft" {
				t.Fatalf("decoded %+v", ev)
			}
		}},
		{`{"type":"key_up","key":"a"}`, func(t *testing.T, ev InputEvent) {
			if ev.Type != "key_up" || ev.Key != "a" {
				t.Fatalf("decoded %+v", ev)
			}
		}},
		{`{"type":"mouse_move","x":100,"y":200}`, func(t *testing.T, ev InputEvent) {
			if ev.X != 100 || ev.Y != 200 {
				t.Fatalf("decoded %+v", ev)
			}
		}},
		{`{"type":"mouse_down","x":5,"y":6,"button":"left"}`, func(t *testing.T, ev InputEvent) {
			if ev.Button != "left" {
				t.Fatalf("decoded %+v", ev)
			}
		}},
		{`{"type":"mouse_wheel","x":1,"y":2,"dx":-3,"dy":4}`, func(t *testing.T, ev InputEvent) {
			if ev.DX != -3 || ev.DY != 4 {
				t.Fatalf("decoded %+v", ev)
			}
		}},
	}
	for _, c := range cases {
		var ev InputEvent
		if err := json.Unmarshal([]byte(c.payload), &ev); err != nil {
			t.Fatalf("unmarshal %s: %v", c.payload, err)
		}
		c.check(t, ev)
	}
}

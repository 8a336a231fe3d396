package rigsim

import (
	"encoding/json"
	"testing"
	"time"

	"umbra/rig"
)

func batchFrame(t *testing.T, cmds ...rig.Envelope) []byte {
	t.Helper()
	data, err := json.Marshal(rig.BatchData{Commands: cmds})
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(rig.Envelope{Type: rig.TypeBatch, ID: "batch", TS: time.Now().UnixMilli(), Data: data})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func envelope(t *testing.T, typ rig.CommandType, id string, data any) rig.Envelope {
	t.Helper()
	env := rig.Envelope{Type: typ, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatal(err)
		}
		env.Data = raw
	}
	return env
}

func TestSim_AppliesBatchAndChecksParity(t *testing.T) {
	grid := rig.GridFor(4, 4, true)
	sim := New(grid)

	frame := batchFrame(t,
		envelope(t, rig.TypeUpdateCell, "ok", rig.UpdateCellData{X: 2, Y: 2, RGB: rig.RGB{1, 2, 3}, Duration: rig.Perm}),
		// 奇数行は蛇行で反転するので、配線上の(6,1)は物理(0,1)で副格子
		envelope(t, rig.TypeUpdateCell, "odd", rig.UpdateCellData{X: 6, Y: 1, RGB: rig.RGB{1, 1, 1}, Duration: rig.Turns(1)}),
		envelope(t, rig.TypeGameEffect, "fx", map[string]any{"name": "glow", "params": map[string]any{"cells": []rig.Point{{X: 5, Y: 1}}}}),
		envelope(t, rig.TypeGameEffect, "badfx", map[string]any{"name": "glow", "params": map[string]any{"cells": []rig.Point{{X: 0, Y: 0}}}}),
		envelope(t, "strobe", "unknown", nil),
	)
	resps, err := sim.Apply(frame)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"ok": "", "odd": CodeParity, "fx": "", "badfx": CodeParity, "unknown": CodeUnknown}
	if len(resps) != len(want) {
		t.Fatalf("got %d responses, want %d", len(resps), len(want))
	}
	for _, r := range resps {
		code, ok := want[r.CommandID]
		if !ok {
			t.Fatalf("unexpected response for %s", r.CommandID)
		}
		if code == "" && r.Failed() {
			t.Errorf("%s failed with %s: %s", r.CommandID, r.Code, r.Msg)
		}
		if code != "" && r.Code != code {
			t.Errorf("%s code = %q, want %q", r.CommandID, r.Code, code)
		}
	}

	f := sim.Frame()
	if px := f.At(rig.Point{X: 2, Y: 2}); !px.Lit || px.RGB != (rig.RGB{1, 2, 3}) {
		t.Errorf("pixel (2,2) = %+v", px)
	}
	if len(f.Effects) != 1 || f.Effects[0] != "glow" {
		t.Errorf("effects = %v, want [glow]", f.Effects)
	}
	if st := sim.Stats(); st.Applied != 2 || st.Rejected != 3 {
		t.Errorf("stats = %+v, want 2 applied 3 rejected", st)
	}
}

func TestSim_LightPrimariesAndClear(t *testing.T) {
	sim := New(rig.GridFor(3, 3, false))
	sim.Apply(batchFrame(t,
		envelope(t, rig.TypeUpdateCell, "a", rig.UpdateCellData{X: 0, Y: 0, RGB: rig.RGB{9, 9, 9}, Duration: rig.Perm}),
		envelope(t, rig.TypeLightPrimaries, "b", rig.LightPrimariesData{RGB: rig.RGB{40, 40, 40}}),
	))
	f := sim.Frame()
	if !f.Safety {
		t.Fatal("safety mode not set")
	}
	if px := f.At(rig.Point{X: 0, Y: 0}); px.RGB != (rig.RGB{9, 9, 9}) {
		t.Errorf("lit primary overwritten: %+v", px)
	}
	if px := f.At(rig.Point{X: 4, Y: 2}); !px.Lit || px.RGB != (rig.RGB{40, 40, 40}) {
		t.Errorf("dark primary not lit: %+v", px)
	}
	if px := f.At(rig.Point{X: 1, Y: 0}); px.Lit {
		t.Errorf("secondary lit by light_primaries: %+v", px)
	}

	sim.Apply(batchFrame(t, envelope(t, rig.TypeClear, "c", nil)))
	f = sim.Frame()
	if f.Safety || f.At(rig.Point{X: 0, Y: 0}).Lit {
		t.Error("clear did not reset the frame")
	}
}

func TestSim_FailNextAndKeepalive(t *testing.T) {
	sim := New(rig.GridFor(2, 2, false))
	sim.FailNext(1)
	resps, _ := sim.Apply(batchFrame(t,
		envelope(t, rig.TypeBrightness, "b1", rig.BrightnessData{Level: 10}),
		envelope(t, rig.TypeEffect, "k", rig.EffectData{Name: rig.KeepaliveEffect}),
	))
	if resps[0].Code != CodeBusy || resps[1].Failed() {
		t.Fatalf("responses = %+v", resps)
	}
	if sim.Stats().Keepalives != 1 || sim.Frame().Brightness != 255 {
		t.Fatalf("stats = %+v brightness = %d", sim.Stats(), sim.Frame().Brightness)
	}
	if _, err := sim.Apply([]byte("{")); err == nil {
		t.Fatal("undecodable frame accepted")
	}
}
